package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

// Vendor inserts a vendor with a fresh operator user.
func Vendor(t testing.TB, client *db.Client, name string) models.Vendor {
	t.Helper()
	v := models.Vendor{UserID: uuid.New(), Name: name, Email: name + "@vendors.test"}
	if err := client.DB().Create(&v).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	return v
}

// Product inserts a published product.
func Product(t testing.TB, client *db.Client, vendorID uuid.UUID, price, shipping string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		VendorID: vendorID,
		Title:    "product-" + uuid.NewString()[:8],
		Price:    decimal.RequireFromString(price),
		Shipping: decimal.RequireFromString(shipping),
		Stock:    stock,
		Status:   enums.ProductStatusPublished,
	}
	if err := client.DB().Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// Address inserts an address book entry for customerID.
func Address(t testing.TB, client *db.Client, customerID uuid.UUID, country string) models.CustomerAddress {
	t.Helper()
	a := models.CustomerAddress{
		CustomerID: customerID,
		FullName:   "Test Customer",
		Email:      "customer@example.test",
		Line1:      "1 Market Street",
		City:       "Springfield",
		Country:    country,
	}
	if err := client.DB().Create(&a).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return a
}

// Order inserts a Processing order for customerID with one item (qty 1, no tax)
// per product and the derived vendor set.
func Order(t testing.TB, client *db.Client, customerID uuid.UUID, cartID string, products ...models.Product) models.Order {
	t.Helper()
	order := models.Order{
		OrderRef:   types.NewRef(types.OrderRefPrefix),
		CustomerID: customerID,
		CartID:     cartID,
		Address: types.Address{
			FullName: "Test Customer",
			Email:    "customer@example.test",
			Line1:    "1 Market Street",
			City:     "Springfield",
			Country:  "US",
		},
		SubTotal:      decimal.Zero,
		ShippingTotal: decimal.Zero,
		Tax:           decimal.Zero,
		ServiceFee:    decimal.Zero,
		Saved:         decimal.Zero,
		PaymentStatus: enums.PaymentStatusProcessing,
		OrderStatus:   enums.OrderStatusPending,
	}
	seen := map[uuid.UUID]bool{}
	for _, p := range products {
		total := p.Price.Add(p.Shipping)
		order.Items = append(order.Items, models.OrderItem{
			ItemRef:       types.NewRef(types.ItemRefPrefix),
			ProductID:     p.ID,
			VendorID:      p.VendorID,
			ProductTitle:  p.Title,
			Qty:           1,
			Price:         p.Price,
			SubTotal:      p.Price,
			ShippingTotal: p.Shipping,
			Tax:           decimal.Zero,
			Total:         total,
			InitialTotal:  total,
			Saved:         decimal.Zero,
			OrderStatus:   enums.OrderStatusPending,
		})
		order.SubTotal = order.SubTotal.Add(p.Price)
		order.ShippingTotal = order.ShippingTotal.Add(p.Shipping)
		if !seen[p.VendorID] {
			seen[p.VendorID] = true
			order.Vendors = append(order.Vendors, models.OrderVendor{VendorID: p.VendorID})
		}
	}
	order.Total = order.SubTotal.Add(order.ShippingTotal)
	if err := client.DB().Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}
