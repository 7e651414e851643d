package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

// OrderPaidEvent is emitted in the same transaction that marks an order paid.
// It carries enough to address every recipient without re-reading the order.
type OrderPaidEvent struct {
	OrderID    uuid.UUID             `json:"order_id"`
	OrderRef   string                `json:"order_ref"`
	CustomerID uuid.UUID             `json:"customer_id"`
	Email      string                `json:"email"`
	FullName   string                `json:"full_name"`
	Total      decimal.Decimal       `json:"total"`
	Provider   enums.PaymentProvider `json:"provider"`
	VendorIDs  []uuid.UUID           `json:"vendor_ids"`
}
