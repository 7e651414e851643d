package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
)

// VendorTotals captures the cart amounts attributable to one vendor.
type VendorTotals struct {
	VendorID      uuid.UUID
	SubTotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	Total         decimal.Decimal
	ItemCount     int
}

// VendorOf resolves the vendor owning a cart line at this instant.
func VendorOf(line models.CartLine, products map[uuid.UUID]models.Product) uuid.UUID {
	return products[line.ProductID].VendorID
}

// DistinctVendors returns the vendor set across lines in first-seen order.
func DistinctVendors(lines []models.CartLine, products map[uuid.UUID]models.Product) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	out := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		vendorID := VendorOf(line, products)
		if _, ok := seen[vendorID]; ok {
			continue
		}
		seen[vendorID] = struct{}{}
		out = append(out, vendorID)
	}
	return out
}

// ComputeTotalsByVendor returns per-vendor sums keyed by vendor.
func ComputeTotalsByVendor(lines []models.CartLine, products map[uuid.UUID]models.Product) map[uuid.UUID]VendorTotals {
	results := make(map[uuid.UUID]VendorTotals)
	for _, line := range lines {
		vendorID := VendorOf(line, products)
		totals, ok := results[vendorID]
		if !ok {
			totals = VendorTotals{VendorID: vendorID, SubTotal: decimal.Zero, ShippingTotal: decimal.Zero, Total: decimal.Zero}
		}
		totals.SubTotal = totals.SubTotal.Add(line.SubTotal)
		totals.ShippingTotal = totals.ShippingTotal.Add(line.ShippingTotal)
		totals.Total = totals.Total.Add(line.Total)
		totals.ItemCount++
		results[vendorID] = totals
	}
	return results
}
