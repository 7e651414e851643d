package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartLine is one product in a cart. (cart_id, product_id) is unique.
type CartLine struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID        string          `gorm:"column:cart_id;type:text;not null;uniqueIndex:ux_cart_lines_cart_product,priority:1"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_lines_cart_product,priority:2"`
	UserID        *uuid.UUID      `gorm:"column:user_id;type:uuid"`
	Qty           int             `gorm:"column:qty;not null"`
	Color         string          `gorm:"column:color;type:text"`
	Size          string          `gorm:"column:size;type:text"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Shipping      decimal.Decimal `gorm:"column:shipping;type:numeric(12,2);not null"`
	SubTotal      decimal.Decimal `gorm:"column:sub_total;type:numeric(12,2);not null"`
	ShippingTotal decimal.Decimal `gorm:"column:shipping_total;type:numeric(12,2);not null"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *CartLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
