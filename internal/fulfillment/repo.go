package fulfillment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/repo"
	dbpkg "github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
)

// Repository reads and updates order items for fulfillment tracking.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx)}
}

// LockOrder loads the order row (no relations) holding its lock until the transaction ends.
func (r *Repository) LockOrder(ctx context.Context, orderRef string) (*models.Order, error) {
	var order models.Order
	err := dbpkg.ForUpdate(r.base.DB(ctx)).Where("order_ref = ?", orderRef).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindItem(ctx context.Context, orderID uuid.UUID, itemRef string) (*models.OrderItem, error) {
	var item models.OrderItem
	err := r.base.DB(ctx).Where("order_id = ? AND item_ref = ?", orderID, itemRef).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).Model(&models.OrderItem{}).Where("id = ?", itemID).Updates(updates).Error
}

// FindByReference returns the earliest item whose item_ref or tracking_id equals ref.
func (r *Repository) FindByReference(ctx context.Context, ref string) (*models.OrderItem, string, error) {
	var item models.OrderItem
	err := r.base.DB(ctx).
		Where("item_ref = ? OR tracking_id = ?", ref, ref).
		Order("created_at ASC").Order("id ASC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	var order models.Order
	if err := r.base.DB(ctx).Select("order_ref").Where("id = ?", item.OrderID).First(&order).Error; err != nil {
		return nil, "", err
	}
	return &item, order.OrderRef, nil
}
