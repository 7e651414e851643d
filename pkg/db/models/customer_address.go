package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

// CustomerAddress is an entry in a customer's address book.
type CustomerAddress struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	FullName   string    `gorm:"column:full_name;type:text;not null"`
	Email      string    `gorm:"column:email;type:text;not null"`
	Mobile     string    `gorm:"column:mobile;type:text"`
	Line1      string    `gorm:"column:line1;type:text;not null"`
	Line2      *string   `gorm:"column:line2;type:text"`
	City       string    `gorm:"column:city;type:text;not null"`
	State      string    `gorm:"column:state;type:text"`
	PostalCode string    `gorm:"column:postal_code;type:text"`
	Country    string    `gorm:"column:country;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (a *CustomerAddress) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Snapshot copies the address into the immutable form stored on orders.
func (a CustomerAddress) Snapshot() types.Address {
	return types.Address{
		FullName:   a.FullName,
		Email:      a.Email,
		Mobile:     a.Mobile,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
