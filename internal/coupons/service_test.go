package coupons

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T) (*db.Client, Service, orders.Repository) {
	t.Helper()
	client := dbtest.Open(t)
	ordersRepo := orders.NewRepository(client.DB())
	svc, err := NewService(NewRepository(client.DB()), ordersRepo, client, nil)
	require.NoError(t, err)
	return client, svc, ordersRepo
}

func count(t *testing.T, client *db.Client, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, client.DB().Model(model).Count(&n).Error)
	return n
}

func TestApplySingleVendorTenPercent(t *testing.T) {
	client, svc, ordersRepo := newService(t)
	ctx := context.Background()
	vendor := dbtest.Vendor(t, client, "acme")
	p := dbtest.Product(t, client, vendor.ID, "100.00", "0", 3)
	customer := uuid.New()
	order := dbtest.Order(t, client, customer, "cart-1", p)

	_, err := svc.Create(ctx, vendor.ID, CreateInput{Code: "TEN", Discount: 10})
	require.NoError(t, err)

	result, err := svc.Apply(ctx, ApplyInput{OrderRef: order.OrderRef, CustomerID: customer, Code: "TEN"})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.True(t, result.Discount.Equal(dec("10")))

	stored, err := ordersRepo.FindByRef(ctx, order.OrderRef)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(dec("90")), "total %s", stored.Total)
	assert.True(t, stored.Saved.Equal(dec("10")))
	assert.True(t, stored.SubTotal.Equal(dec("90")))
	require.Len(t, stored.Coupons, 1)
	require.Len(t, stored.Items, 1)
	item := stored.Items[0]
	assert.True(t, item.Total.Equal(dec("90")))
	assert.True(t, item.Saved.Equal(dec("10")))
	assert.True(t, item.InitialTotal.Equal(dec("100")), "initial total is immutable")
	assert.Len(t, item.Coupons, 1)

	_, err = svc.Apply(ctx, ApplyInput{OrderRef: order.OrderRef, CustomerID: customer, Code: " TEN "})
	assert.True(t, errors.Is(err, ErrAlreadyApplied))

	again, err := ordersRepo.FindByRef(ctx, order.OrderRef)
	require.NoError(t, err)
	assert.True(t, again.Total.Equal(dec("90")), "second apply leaves totals unchanged")
	assert.Equal(t, int64(1), count(t, client, &models.OrderCoupon{}))
}

func TestApplyConcurrentRequestsDiscountOnce(t *testing.T) {
	client, svc, ordersRepo := newService(t)
	ctx := context.Background()
	vendor := dbtest.Vendor(t, client, "acme")
	p := dbtest.Product(t, client, vendor.ID, "100.00", "0", 3)
	customer := uuid.New()
	order := dbtest.Order(t, client, customer, "cart-1", p)
	_, err := svc.Create(ctx, vendor.ID, CreateInput{Code: "TEN", Discount: 10})
	require.NoError(t, err)

	const callers = 6
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Apply(ctx, ApplyInput{OrderRef: order.OrderRef, CustomerID: customer, Code: "TEN"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, ErrAlreadyApplied), "unexpected error %v", err)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, int64(1), count(t, client, &models.OrderCoupon{}))
	assert.Equal(t, int64(1), count(t, client, &models.OrderItemCoupon{}))

	stored, err := ordersRepo.FindByRef(ctx, order.OrderRef)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(dec("90")), "discount applied once, total %s", stored.Total)
	assert.True(t, stored.Saved.Equal(dec("10")))
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].Saved.Equal(dec("10")))
}

func TestApplyDiscountsOnlyCouponVendorItems(t *testing.T) {
	client, svc, ordersRepo := newService(t)
	ctx := context.Background()
	v1 := dbtest.Vendor(t, client, "v1")
	v2 := dbtest.Vendor(t, client, "v2")
	p1 := dbtest.Product(t, client, v1.ID, "20.00", "5.00", 3)
	p2 := dbtest.Product(t, client, v2.ID, "10.00", "0", 3)
	customer := uuid.New()
	order := dbtest.Order(t, client, customer, "cart-2", p1, p2)

	_, err := svc.Create(ctx, v1.ID, CreateInput{Code: "V1TEN", Discount: 10})
	require.NoError(t, err)

	result, err := svc.Apply(ctx, ApplyInput{OrderRef: order.OrderRef, CustomerID: customer, Code: "V1TEN"})
	require.NoError(t, err)
	require.True(t, result.Applied)
	assert.True(t, result.Discount.Equal(dec("2.5")))

	stored, err := ordersRepo.FindByRef(ctx, order.OrderRef)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(order.Total.Sub(dec("2.5"))), "total %s", stored.Total)
	for _, item := range stored.Items {
		switch item.VendorID {
		case v1.ID:
			assert.True(t, item.Total.Equal(dec("22.5")))
			assert.Len(t, item.Coupons, 1)
		case v2.ID:
			assert.True(t, item.Total.Equal(dec("10")))
			assert.Empty(t, item.Coupons)
		}
	}
}

func TestApplyWithoutEligibleItemsPersistsNothing(t *testing.T) {
	client, svc, ordersRepo := newService(t)
	ctx := context.Background()
	v1 := dbtest.Vendor(t, client, "v1")
	other := dbtest.Vendor(t, client, "other")
	customer := uuid.New()
	order := dbtest.Order(t, client, customer, "cart-3", dbtest.Product(t, client, v1.ID, "40.00", "0", 3))

	_, err := svc.Create(ctx, other.ID, CreateInput{Code: "ELSEWHERE", Discount: 50})
	require.NoError(t, err)

	result, err := svc.Apply(ctx, ApplyInput{OrderRef: order.OrderRef, CustomerID: customer, Code: "ELSEWHERE"})
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, ReasonNoEligibleItems, result.Reason)

	stored, err := ordersRepo.FindByRef(ctx, order.OrderRef)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(dec("40")))
	assert.Empty(t, stored.Coupons)
	assert.Zero(t, count(t, client, &models.OrderCoupon{}))
}

func TestApplyRejections(t *testing.T) {
	client, svc, _ := newService(t)
	ctx := context.Background()
	vendor := dbtest.Vendor(t, client, "acme")
	customer := uuid.New()
	order := dbtest.Order(t, client, customer, "cart-4", dbtest.Product(t, client, vendor.ID, "10.00", "0", 3))
	inactive := false
	_, err := svc.Create(ctx, vendor.ID, CreateInput{Code: "OFF", Discount: 5, Active: &inactive})
	require.NoError(t, err)
	_, err = svc.Create(ctx, vendor.ID, CreateInput{Code: "ON", Discount: 5})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, ApplyInput{OrderRef: order.OrderRef, CustomerID: customer, Code: ""})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Apply(ctx, ApplyInput{OrderRef: order.OrderRef, CustomerID: customer, Code: "NOPE"})
	assert.True(t, errors.Is(err, ErrCouponNotFound))

	_, err = svc.Apply(ctx, ApplyInput{OrderRef: order.OrderRef, CustomerID: customer, Code: "OFF"})
	assert.True(t, errors.Is(err, ErrCouponNotFound), "inactive coupons are not found")

	_, err = svc.Apply(ctx, ApplyInput{OrderRef: "ORD-000000000000", CustomerID: customer, Code: "ON"})
	assert.True(t, errors.Is(err, orders.ErrOrderNotFound))

	_, err = svc.Apply(ctx, ApplyInput{OrderRef: order.OrderRef, CustomerID: uuid.New(), Code: "ON"})
	assert.True(t, errors.Is(err, orders.ErrOrderNotFound))

	require.NoError(t, client.DB().Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_status", enums.PaymentStatusPaid).Error)
	_, err = svc.Apply(ctx, ApplyInput{OrderRef: order.OrderRef, CustomerID: customer, Code: "ON"})
	assert.True(t, errors.Is(err, orders.ErrAlreadyPaid))
}

func TestVendorCouponManagement(t *testing.T) {
	client, svc, _ := newService(t)
	ctx := context.Background()
	owner := dbtest.Vendor(t, client, "owner")
	intruder := dbtest.Vendor(t, client, "intruder")

	coupon, err := svc.Create(ctx, owner.ID, CreateInput{Code: "SPRING", Discount: 15})
	require.NoError(t, err)
	assert.True(t, coupon.Active)

	_, err = svc.Create(ctx, intruder.ID, CreateInput{Code: "SPRING", Discount: 20})
	assert.True(t, errors.Is(err, ErrCodeTaken))

	_, err = svc.Create(ctx, owner.ID, CreateInput{Code: "BIG", Discount: 101})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	pct := 25
	_, err = svc.Update(ctx, intruder.ID, coupon.ID, UpdateInput{Discount: &pct})
	assert.True(t, errors.Is(err, ErrCouponForbidden))

	off := false
	updated, err := svc.Update(ctx, owner.ID, coupon.ID, UpdateInput{Discount: &pct, Active: &off})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Discount)
	assert.False(t, updated.Active)

	list, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 25, list[0].Discount)

	assert.True(t, errors.Is(svc.Delete(ctx, intruder.ID, coupon.ID), ErrCouponForbidden))
	require.NoError(t, svc.Delete(ctx, owner.ID, coupon.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, owner.ID, coupon.ID), ErrCouponNotFound))
}
