package cron

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/cart"
	"github.com/angelmondragon/bazaar-backend/internal/notifications"
	"github.com/angelmondragon/bazaar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
)

var jobNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func pinClock(t *testing.T, job Job) {
	t.Helper()
	rj, ok := job.(*retentionJob)
	require.True(t, ok, "expected retentionJob, got %T", job)
	rj.now = func() time.Time { return jobNow }
}

func TestNotificationCleanupKeepsUnseenAndRecent(t *testing.T) {
	client := dbtest.Open(t)
	userID := uuid.New()
	old := jobNow.Add(-40 * 24 * time.Hour)
	recent := jobNow.Add(-2 * 24 * time.Hour)

	rows := []models.Notification{
		{UserID: userID, Type: enums.NotificationTypeOrderPlaced, Seen: true, SeenAt: &old, CreatedAt: old},
		{UserID: userID, Type: enums.NotificationTypeNewOrder, Seen: true, SeenAt: &recent, CreatedAt: old},
		{UserID: userID, Type: enums.NotificationTypeItemShipped, CreatedAt: old},
	}
	require.NoError(t, client.DB().Create(&rows).Error)

	job, err := NewNotificationCleanupJob(client, notifications.NewRepository(client.DB()), 30*24*time.Hour)
	require.NoError(t, err)
	pinClock(t, job)

	deleted, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, client.DB().Model(&models.Notification{}).Count(&remaining).Error)
	require.Equal(t, int64(2), remaining)
}

func TestOutboxRetentionKeepsPendingRows(t *testing.T) {
	client := dbtest.Open(t)
	old := jobNow.Add(-45 * 24 * time.Hour)
	payload := json.RawMessage(`{}`)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: payload, CreatedAt: old, PublishedAt: &old},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: payload, CreatedAt: old},
	}
	require.NoError(t, client.DB().Create(&rows).Error)

	job, err := NewOutboxRetentionJob(client, outbox.NewRepository(client.DB()), 30*24*time.Hour)
	require.NoError(t, err)
	pinClock(t, job)

	deleted, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	var left []models.OutboxEvent
	require.NoError(t, client.DB().Find(&left).Error)
	require.Len(t, left, 1)
	require.Nil(t, left[0].PublishedAt)
}

func TestCartExpiryDropsWholeIdleCarts(t *testing.T) {
	client := dbtest.Open(t)
	idle := jobNow.Add(-10 * 24 * time.Hour)
	fresh := jobNow.Add(-time.Hour)

	line := func(cartID string, touched time.Time) models.CartLine {
		return models.CartLine{
			CartID:        cartID,
			ProductID:     uuid.New(),
			Qty:           1,
			Price:         decimal.NewFromInt(5),
			Shipping:      decimal.Zero,
			SubTotal:      decimal.NewFromInt(5),
			ShippingTotal: decimal.Zero,
			Total:         decimal.NewFromInt(5),
			CreatedAt:     idle,
			UpdatedAt:     touched,
		}
	}
	rows := []models.CartLine{
		line("idle-cart", idle),
		line("idle-cart", idle),
		line("busy-cart", idle),
		line("busy-cart", fresh),
	}
	require.NoError(t, client.DB().Create(&rows).Error)

	job, err := NewCartExpiryJob(client, cart.NewRepository(client.DB()), 7*24*time.Hour)
	require.NoError(t, err)
	pinClock(t, job)

	deleted, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	var carts []string
	require.NoError(t, client.DB().Model(&models.CartLine{}).Distinct("cart_id").Pluck("cart_id", &carts).Error)
	require.Equal(t, []string{"busy-cart"}, carts)
}

type failingPurger struct{}

func (failingPurger) DeleteSeenBefore(context.Context, *gorm.DB, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestRetentionJobWrapsErrorsWithName(t *testing.T) {
	job, err := NewNotificationCleanupJob(passthroughTx{}, failingPurger{}, time.Hour)
	require.NoError(t, err)

	_, err = job.Run(context.Background())
	require.ErrorContains(t, err, JobNotificationCleanup)
}

func TestRetentionJobRejectsInvalidParams(t *testing.T) {
	_, err := NewNotificationCleanupJob(passthroughTx{}, failingPurger{}, 0)
	require.Error(t, err)
	_, err = NewOutboxRetentionJob(passthroughTx{}, nil, time.Hour)
	require.Error(t, err)
	_, err = NewCartExpiryJob(nil, nil, time.Hour)
	require.Error(t, err)
}
