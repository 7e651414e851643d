package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model; tests use it with AutoMigrate.
func All() []any {
	return []any{
		&Vendor{},
		&Product{},
		&CustomerAddress{},
		&CartLine{},
		&Order{},
		&OrderVendor{},
		&OrderItem{},
		&PaymentSession{},
		&Coupon{},
		&OrderCoupon{},
		&OrderItemCoupon{},
		&Notification{},
		&OutboxEvent{},
	}
}
