package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

// OrderItem is one purchased line. VendorID is copied from the product at
// creation and never follows later product reassignment.
// InitialTotal is immutable; Total == InitialTotal - Saved.
type OrderItem struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ItemRef         string            `gorm:"column:item_ref;type:text;not null;uniqueIndex:ux_order_items_item_ref"`
	OrderID         uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	VendorID        uuid.UUID         `gorm:"column:vendor_id;type:uuid;not null;index"`
	ProductTitle    string            `gorm:"column:product_title;type:text;not null"`
	Qty             int               `gorm:"column:qty;not null"`
	Color           string            `gorm:"column:color;type:text"`
	Size            string            `gorm:"column:size;type:text"`
	Price           decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	SubTotal        decimal.Decimal   `gorm:"column:sub_total;type:numeric(12,2);not null"`
	ShippingTotal   decimal.Decimal   `gorm:"column:shipping_total;type:numeric(12,2);not null"`
	Tax             decimal.Decimal   `gorm:"column:tax;type:numeric(12,2);not null"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	InitialTotal    decimal.Decimal   `gorm:"column:initial_total;type:numeric(12,2);not null;<-:create"`
	Saved           decimal.Decimal   `gorm:"column:saved;type:numeric(12,2);not null"`
	OrderStatus     enums.OrderStatus `gorm:"column:order_status;type:text;not null"`
	ShippingService *string           `gorm:"column:shipping_service;type:text"`
	TrackingID      *string           `gorm:"column:tracking_id;type:text;index"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Coupons []OrderItemCoupon `gorm:"foreignKey:OrderItemID"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// HasCoupon reports whether couponID was already applied to this item.
func (i OrderItem) HasCoupon(couponID uuid.UUID) bool {
	for _, c := range i.Coupons {
		if c.CouponID == couponID {
			return true
		}
	}
	return false
}
