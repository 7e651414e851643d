package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bazaar-backend/internal/address"
	"github.com/angelmondragon/bazaar-backend/internal/cart"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	product "github.com/angelmondragon/bazaar-backend/internal/products"
	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/money"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type harness struct {
	client *db.Client
	cart   cart.Service
	svc    Service
	orders orders.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	products := product.NewRepository(client.DB())
	cartRepo := cart.NewRepository(client.DB())
	cartSvc, err := cart.NewService(cartRepo, client, products, nil)
	require.NoError(t, err)
	ordersRepo := orders.NewRepository(client.DB())

	svc, err := NewService(ServiceParams{
		Tx:        client,
		CartLines: cartRepo,
		Orders:    ordersRepo,
		Products:  products,
		Addresses: address.NewRepository(client.DB()),
		Pricing: money.Pricing{
			Tax:        money.RateTable(map[string]decimal.Decimal{"US": dec("0.10")}, decimal.Zero),
			ServiceFee: money.PercentPlusFlat(decimal.Zero, dec("1.00")),
		},
	})
	require.NoError(t, err)
	return &harness{client: client, cart: cartSvc, svc: svc, orders: ordersRepo}
}

func (h *harness) add(t *testing.T, cartID string, p models.Product, qty int) {
	t.Helper()
	_, err := h.cart.AddOrUpdate(context.Background(), cart.AddInput{CartID: cartID, ProductID: p.ID, Qty: qty, Color: "red", Size: "M"})
	require.NoError(t, err)
}

func TestBuildSingleLineScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vendor := dbtest.Vendor(t, h.client, "acme")
	p := dbtest.Product(t, h.client, vendor.ID, "20.00", "5.00", 5)
	customer := uuid.New()
	addr := dbtest.Address(t, h.client, customer, "US")
	h.add(t, "cart-1", p, 2)

	order, err := h.svc.Build(ctx, BuildInput{CartID: "cart-1", CustomerID: customer, AddressID: addr.ID})
	require.NoError(t, err)

	assert.True(t, order.SubTotal.Equal(dec("40")), "sub_total %s", order.SubTotal)
	assert.True(t, order.ShippingTotal.Equal(dec("10")))
	assert.True(t, order.Tax.Equal(dec("4")))
	assert.True(t, order.ServiceFee.Equal(dec("1")))
	assert.True(t, order.Total.Equal(dec("55")), "total %s", order.Total)
	assert.Equal(t, enums.PaymentStatusProcessing, order.PaymentStatus)
	assert.Regexp(t, `^ORD-[0-9A-F]{12}$`, order.OrderRef)
	assert.Equal(t, "US", order.Address.Country)

	stored, err := h.orders.FindByRef(ctx, order.OrderRef)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	item := stored.Items[0]
	assert.Equal(t, vendor.ID, item.VendorID)
	assert.Equal(t, 2, item.Qty)
	assert.Equal(t, "red", item.Color)
	assert.True(t, item.Total.Equal(dec("50")))
	assert.True(t, item.InitialTotal.Equal(item.Total))
	assert.True(t, item.Tax.Equal(dec("4")))
	require.Len(t, stored.Vendors, 1)

	snap, err := h.cart.Snapshot(ctx, "cart-1")
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1, "cart survives until payment")
}

func TestBuildMultiVendorKeepsTotalInvariant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v1 := dbtest.Vendor(t, h.client, "north")
	v2 := dbtest.Vendor(t, h.client, "south")
	customer := uuid.New()
	addr := dbtest.Address(t, h.client, customer, "US")
	h.add(t, "cart-2", dbtest.Product(t, h.client, v1.ID, "12.35", "1.10", 9), 3)
	h.add(t, "cart-2", dbtest.Product(t, h.client, v2.ID, "7.05", "0", 9), 1)
	h.add(t, "cart-2", dbtest.Product(t, h.client, v1.ID, "0.99", "0.25", 9), 7)

	order, err := h.svc.Build(ctx, BuildInput{CartID: "cart-2", CustomerID: customer, AddressID: addr.ID})
	require.NoError(t, err)

	assert.True(t, order.Total.Equal(order.SubTotal.Add(order.ShippingTotal).Add(order.Tax).Add(order.ServiceFee)))
	assert.Len(t, order.Items, 3)
	assert.Len(t, order.Vendors, 2)

	itemTax := decimal.Zero
	for _, item := range order.Items {
		itemTax = itemTax.Add(item.Tax)
		assert.True(t, item.Tax.Equal(money.Round(item.SubTotal.Mul(dec("0.10")))), "per-line tax")
	}
	assert.False(t, itemTax.IsZero())
}

func TestBuildValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vendor := dbtest.Vendor(t, h.client, "acme")
	customer := uuid.New()
	addr := dbtest.Address(t, h.client, customer, "US")

	_, err := h.svc.Build(ctx, BuildInput{CartID: "empty", CustomerID: customer, AddressID: addr.ID})
	assert.True(t, errors.Is(err, ErrEmptyCart))

	h.add(t, "cart-3", dbtest.Product(t, h.client, vendor.ID, "1.00", "0", 2), 1)

	_, err = h.svc.Build(ctx, BuildInput{CartID: "cart-3", CustomerID: customer})
	assert.True(t, errors.Is(err, ErrNoAddress))

	_, err = h.svc.Build(ctx, BuildInput{CartID: "cart-3", CustomerID: uuid.New(), AddressID: addr.ID})
	assert.True(t, errors.Is(err, ErrNoAddress), "another customer's address is absent")

	_, err = h.svc.Build(ctx, BuildInput{CartID: " ", CustomerID: customer, AddressID: addr.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, h.client.DB().Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBuildRejectsProductsDisabledAfterAdd(t *testing.T) {
	h := newHarness(t)
	vendor := dbtest.Vendor(t, h.client, "acme")
	p := dbtest.Product(t, h.client, vendor.ID, "3.00", "0", 2)
	customer := uuid.New()
	addr := dbtest.Address(t, h.client, customer, "US")
	h.add(t, "cart-4", p, 1)
	require.NoError(t, h.client.DB().Model(&models.Product{}).Where("id = ?", p.ID).Update("status", enums.ProductStatusDisabled).Error)

	_, err := h.svc.Build(context.Background(), BuildInput{CartID: "cart-4", CustomerID: customer, AddressID: addr.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestVerifyTotalsDetectsDrift(t *testing.T) {
	order := &models.Order{SubTotal: dec("1"), ShippingTotal: dec("1"), Tax: dec("1"), ServiceFee: dec("1"), Total: dec("5")}
	assert.True(t, pkgerrors.IsCode(verifyTotals(order), pkgerrors.CodeInternal))
	order.Total = dec("4")
	order.Items = []models.OrderItem{{Total: dec("3"), InitialTotal: dec("4"), Saved: dec("0.5")}}
	assert.True(t, pkgerrors.IsCode(verifyTotals(order), pkgerrors.CodeInternal))
	order.Items[0].Saved = dec("1")
	require.NoError(t, verifyTotals(order))
}
