package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

// Product is the catalog row the cart and order builder price from.
type Product struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	VendorID  uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	Title     string              `gorm:"column:title;type:text;not null"`
	Price     decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	Shipping  decimal.Decimal     `gorm:"column:shipping;type:numeric(12,2);not null"`
	Stock     int                 `gorm:"column:stock;not null"`
	Status    enums.ProductStatus `gorm:"column:status;type:text;not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
