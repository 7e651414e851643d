package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Coupon is a vendor-scoped percentage discount.
type Coupon struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VendorID  uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	Code      string    `gorm:"column:code;type:text;not null;uniqueIndex:ux_coupons_code"`
	Discount  int       `gorm:"column:discount;not null"`
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// OrderCoupon records a coupon applied to an order. The composite key is the
// at-most-once guard.
type OrderCoupon struct {
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey"`
	CouponID  uuid.UUID `gorm:"column:coupon_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// OrderItemCoupon records a coupon applied to an individual item.
type OrderItemCoupon struct {
	OrderItemID uuid.UUID `gorm:"column:order_item_id;type:uuid;primaryKey"`
	CouponID    uuid.UUID `gorm:"column:coupon_id;type:uuid;primaryKey"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
