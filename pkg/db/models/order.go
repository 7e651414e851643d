package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

// Order is the durable record created at checkout.
// Total always equals SubTotal + ShippingTotal + Tax + ServiceFee.
type Order struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderRef          string                 `gorm:"column:order_ref;type:text;not null;uniqueIndex:ux_orders_order_ref"`
	CustomerID        uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index"`
	CartID            string                 `gorm:"column:cart_id;type:text;not null"`
	Address           types.Address          `gorm:"column:address;type:jsonb;not null"`
	SubTotal          decimal.Decimal        `gorm:"column:sub_total;type:numeric(12,2);not null"`
	ShippingTotal     decimal.Decimal        `gorm:"column:shipping_total;type:numeric(12,2);not null"`
	Tax               decimal.Decimal        `gorm:"column:tax;type:numeric(12,2);not null"`
	ServiceFee        decimal.Decimal        `gorm:"column:service_fee;type:numeric(12,2);not null"`
	Total             decimal.Decimal        `gorm:"column:total;type:numeric(12,2);not null"`
	Saved             decimal.Decimal        `gorm:"column:saved;type:numeric(12,2);not null"`
	PaymentStatus     enums.PaymentStatus    `gorm:"column:payment_status;type:text;not null"`
	PaymentMethod     *enums.PaymentProvider `gorm:"column:payment_method;type:text;uniqueIndex:ux_orders_provider_reference,priority:1"`
	ProviderReference *string                `gorm:"column:provider_reference;type:text;uniqueIndex:ux_orders_provider_reference,priority:2"`
	OrderStatus       enums.OrderStatus      `gorm:"column:order_status;type:text;not null"`
	PaidAt            *time.Time             `gorm:"column:paid_at"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Items    []OrderItem      `gorm:"foreignKey:OrderID"`
	Vendors  []OrderVendor    `gorm:"foreignKey:OrderID"`
	Coupons  []OrderCoupon    `gorm:"foreignKey:OrderID"`
	Sessions []PaymentSession `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// IsPaid reports whether the payment transition already happened.
func (o Order) IsPaid() bool {
	return o.PaymentStatus == enums.PaymentStatusPaid
}

// HasSession reports whether the provider-side session or order id was opened
// for this order.
func (o Order) HasSession(provider enums.PaymentProvider, sessionID string) bool {
	for _, sess := range o.Sessions {
		if sess.Provider == provider && sess.SessionID == sessionID {
			return true
		}
	}
	return false
}

// HasVendor reports whether vendorID contributed items to the order.
func (o Order) HasVendor(vendorID uuid.UUID) bool {
	for _, v := range o.Vendors {
		if v.VendorID == vendorID {
			return true
		}
	}
	return false
}

// VendorIDs returns the distinct vendor set.
func (o Order) VendorIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(o.Vendors))
	for _, v := range o.Vendors {
		out = append(out, v.VendorID)
	}
	return out
}

// OrderVendor is the order's distinct vendor set, derived from its items.
type OrderVendor struct {
	OrderID  uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey"`
	VendorID uuid.UUID `gorm:"column:vendor_id;type:uuid;primaryKey;index"`
}

// PaymentSession binds a provider-side checkout (a Stripe session, a Razorpay
// order) to the order it was opened for. An order keeps every session it opened.
type PaymentSession struct {
	Provider  enums.PaymentProvider `gorm:"column:provider;type:text;primaryKey"`
	SessionID string                `gorm:"column:session_id;type:text;primaryKey"`
	OrderID   uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}
