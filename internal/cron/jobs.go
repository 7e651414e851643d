package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	JobNotificationCleanup = "notification-cleanup"
	JobOutboxRetention     = "outbox-retention"
	JobCartExpiry          = "cart-expiry"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notificationPurger interface {
	DeleteSeenBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type cartPurger interface {
	DeleteIdleCarts(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// retentionJob deletes rows older than now-retention inside one transaction.
type retentionJob struct {
	name      string
	db        txRunner
	retention time.Duration
	purge     purgeFunc
	now       func() time.Time
}

func newRetentionJob(name string, db txRunner, retention time.Duration, purge purgeFunc) (Job, error) {
	if db == nil {
		return nil, fmt.Errorf("%s: db runner required", name)
	}
	if retention <= 0 {
		return nil, fmt.Errorf("%s: retention must be positive", name)
	}
	return &retentionJob{name: name, db: db, retention: retention, purge: purge, now: time.Now}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", j.name, err)
	}
	return deleted, nil
}

// NewNotificationCleanupJob drops notifications seen longer ago than retention.
// Unseen notifications are never removed.
func NewNotificationCleanupJob(db txRunner, repo notificationPurger, retention time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return newRetentionJob(JobNotificationCleanup, db, retention, repo.DeleteSeenBefore)
}

// NewOutboxRetentionJob purges delivered outbox rows.
func NewOutboxRetentionJob(db txRunner, repo outboxPurger, retention time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return newRetentionJob(JobOutboxRetention, db, retention, repo.DeletePublishedBefore)
}

// NewCartExpiryJob removes carts nobody has touched for the idle TTL.
func NewCartExpiryJob(db txRunner, repo cartPurger, idleTTL time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return newRetentionJob(JobCartExpiry, db, idleTTL, repo.DeleteIdleCarts)
}
