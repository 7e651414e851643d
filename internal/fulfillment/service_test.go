package fulfillment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bazaar-backend/internal/notifications"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

type fixture struct {
	client  *db.Client
	svc     *Service
	vendorA models.Vendor
	vendorB models.Vendor
	order   models.Order
}

func newFixture(t *testing.T, paid bool) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	notifier, err := notifications.NewService(notifications.NewRepository(client.DB()))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(client.DB()), client, notifier, nil)
	require.NoError(t, err)

	vendorA := dbtest.Vendor(t, client, "alpha")
	vendorB := dbtest.Vendor(t, client, "beta")
	p1 := dbtest.Product(t, client, vendorA.ID, "20.00", "5.00", 5)
	p2 := dbtest.Product(t, client, vendorB.ID, "10.00", "0", 5)
	order := dbtest.Order(t, client, uuid.New(), "cart-1", p1, p2)
	if paid {
		require.NoError(t, client.DB().Model(&models.Order{}).Where("id = ?", order.ID).
			Update("payment_status", enums.PaymentStatusPaid).Error)
	}
	return &fixture{client: client, svc: svc, vendorA: vendorA, vendorB: vendorB, order: order}
}

func (f *fixture) itemOf(vendorID uuid.UUID) models.OrderItem {
	for _, item := range f.order.Items {
		if item.VendorID == vendorID {
			return item
		}
	}
	return models.OrderItem{}
}

func strPtr(s string) *string { return &s }

func TestUpdateItemStatusTouchesOnlyTheItem(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	item := f.itemOf(f.vendorA.ID)

	view, err := f.svc.UpdateItemStatus(ctx, f.vendorA.ID, UpdateItemInput{
		OrderRef:        f.order.OrderRef,
		ItemRef:         item.ItemRef,
		Status:          enums.OrderStatusShipped,
		ShippingService: strPtr("UPS"),
		TrackingID:      strPtr(" 1Z999 "),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, view.OrderStatus)
	require.NotNil(t, view.TrackingID)
	assert.Equal(t, "1Z999", *view.TrackingID)

	var shippedNotices int64
	require.NoError(t, f.client.DB().Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", f.order.CustomerID, enums.NotificationTypeItemShipped).
		Count(&shippedNotices).Error)
	assert.Equal(t, int64(1), shippedNotices)

	sibling, err := f.svc.Lookup(ctx, f.itemOf(f.vendorB.ID).ItemRef)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, sibling.OrderStatus)
	assert.Nil(t, sibling.TrackingID)
}

func TestUpdateItemStatusForbidden(t *testing.T) {
	ctx := context.Background()

	unpaid := newFixture(t, false)
	_, err := unpaid.svc.UpdateItemStatus(ctx, unpaid.vendorA.ID, UpdateItemInput{
		OrderRef: unpaid.order.OrderRef, ItemRef: unpaid.itemOf(unpaid.vendorA.ID).ItemRef, Status: enums.OrderStatusShipped,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	f := newFixture(t, true)
	_, err = f.svc.UpdateItemStatus(ctx, f.vendorB.ID, UpdateItemInput{
		OrderRef: f.order.OrderRef, ItemRef: f.itemOf(f.vendorA.ID).ItemRef, Status: enums.OrderStatusShipped,
	})
	assert.ErrorIs(t, err, ErrNotVendorItem)

	_, err = f.svc.UpdateItemStatus(ctx, uuid.New(), UpdateItemInput{
		OrderRef: f.order.OrderRef, ItemRef: f.itemOf(f.vendorA.ID).ItemRef, Status: enums.OrderStatusShipped,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestUpdateItemStatusRejectsBadInput(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	item := f.itemOf(f.vendorA.ID)

	_, err := f.svc.UpdateItemStatus(ctx, f.vendorA.ID, UpdateItemInput{OrderRef: f.order.OrderRef, ItemRef: item.ItemRef, Status: "teleported"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.UpdateItemStatus(ctx, f.vendorA.ID, UpdateItemInput{OrderRef: "ORD-MISSING", ItemRef: item.ItemRef, Status: enums.OrderStatusShipped})
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	_, err = f.svc.UpdateItemStatus(ctx, f.vendorA.ID, UpdateItemInput{OrderRef: f.order.OrderRef, ItemRef: "ITM-MISSING", Status: enums.OrderStatusShipped})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestLookupByItemRefAndTrackingIDAgree(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	item := f.itemOf(f.vendorA.ID)

	_, err := f.svc.UpdateItemStatus(ctx, f.vendorA.ID, UpdateItemInput{
		OrderRef: f.order.OrderRef, ItemRef: item.ItemRef, Status: enums.OrderStatusShipped, TrackingID: strPtr("TRACK-42"),
	})
	require.NoError(t, err)

	byRef, err := f.svc.Lookup(ctx, item.ItemRef)
	require.NoError(t, err)
	byTracking, err := f.svc.Lookup(ctx, "TRACK-42")
	require.NoError(t, err)
	assert.Equal(t, byRef.ItemRef, byTracking.ItemRef)
	assert.Equal(t, f.order.OrderRef, byTracking.OrderRef)
	assert.Equal(t, enums.OrderStatusShipped, byTracking.OrderStatus)

	_, err = f.svc.Lookup(ctx, "nothing-matches")
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = f.svc.Lookup(ctx, "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
