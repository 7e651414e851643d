package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
)

// Repository exposes persistence operations for cart lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) LineRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindLine returns the unique line for (cartID, productID) or nil when absent.
func (r *Repository) FindLine(ctx context.Context, cartID string, productID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// CreateLine inserts under a savepoint so a unique violation leaves the outer transaction usable.
func (r *Repository) CreateLine(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		return inner.Create(line).Error
	})
}

func (r *Repository) UpdateLine(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ?", line.ID).
		Updates(map[string]any{
			"qty":            line.Qty,
			"color":          line.Color,
			"size":           line.Size,
			"user_id":        line.UserID,
			"price":          line.Price,
			"shipping":       line.Shipping,
			"sub_total":      line.SubTotal,
			"shipping_total": line.ShippingTotal,
			"total":          line.Total,
		}).Error
}

// DeleteLine removes a line of the cart, optionally pinned to a product. It reports whether a row matched.
func (r *Repository) DeleteLine(ctx context.Context, cartID string, lineID uuid.UUID, productID *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Where("cart_id = ? AND id = ?", cartID, lineID)
	if productID != nil {
		q = q.Where("product_id = ?", *productID)
	}
	res := q.Delete(&models.CartLine{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListLines returns the cart's lines oldest first.
func (r *Repository) ListLines(ctx context.Context, cartID string) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

// DeleteAll removes every line of the cart. Deleting an absent cart is not an error.
func (r *Repository) DeleteAll(ctx context.Context, cartID string) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartLine{}).Error
}

// DeleteIdleCarts removes every line of carts with no line touched since cutoff.
func (r *Repository) DeleteIdleCarts(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	db = db.WithContext(ctx)
	active := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.CartLine{}).
		Select("cart_id").
		Where("updated_at >= ?", cutoff)
	result := db.Where("cart_id NOT IN (?)", active).Delete(&models.CartLine{})
	return result.RowsAffected, result.Error
}
