package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bazaar-backend/internal/repo"
	dbpkg "github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/pagination"
)

type repository struct {
	base repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

// Create inserts the order with its items and vendor set.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.base.DB(ctx).Create(order).Error
}

func (r *repository) FindByRef(ctx context.Context, orderRef string) (*models.Order, error) {
	return r.find(ctx, r.base.DB(ctx), orderRef)
}

// LockByRef loads the order holding its row lock until the transaction ends.
func (r *repository) LockByRef(ctx context.Context, orderRef string) (*models.Order, error) {
	return r.find(ctx, dbpkg.ForUpdate(r.base.DB(ctx)), orderRef)
}

func (r *repository) find(ctx context.Context, q *gorm.DB, orderRef string) (*models.Order, error) {
	var order models.Order
	err := q.Where("order_ref = ?", orderRef).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) loadRelations(ctx context.Context, order *models.Order) error {
	db := r.base.DB(ctx)
	if err := db.Where("order_id = ?", order.ID).Order("created_at ASC").Order("item_ref ASC").
		Preload("Coupons").Find(&order.Items).Error; err != nil {
		return err
	}
	if err := db.Where("order_id = ?", order.ID).Find(&order.Vendors).Error; err != nil {
		return err
	}
	if err := db.Where("order_id = ?", order.ID).Order("created_at ASC").Find(&order.Sessions).Error; err != nil {
		return err
	}
	return db.Where("order_id = ?", order.ID).Find(&order.Coupons).Error
}

// MarkPaid performs the single conditional Processing -> Paid write. It reports
// whether this call won the transition.
func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID, provider enums.PaymentProvider, reference string, paidAt time.Time) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, enums.PaymentStatusProcessing).
		Updates(map[string]any{
			"payment_status":     enums.PaymentStatusPaid,
			"payment_method":     provider,
			"provider_reference": reference,
			"paid_at":            paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AddProviderSession records a provider-side session for the order. Earlier
// sessions stay bound so any of them can still settle the order.
func (r *repository) AddProviderSession(ctx context.Context, orderID uuid.UUID, provider enums.PaymentProvider, sessionID string) error {
	return r.base.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PaymentSession{Provider: provider, SessionID: sessionID, OrderID: orderID}).Error
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("order_status", status).Error
}

func (r *repository) FindVendors(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var vendors []models.Vendor
	err := r.base.DB(ctx).Where("id IN ?", ids).Order("name ASC").Find(&vendors).Error
	return vendors, err
}

// ListPaidForVendor pages through Paid orders that contain the vendor's items, newest first.
func (r *repository) ListPaidForVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	q := r.base.DB(ctx).
		Model(&models.Order{}).
		Joins("JOIN order_vendors ON order_vendors.order_id = orders.id").
		Where("order_vendors.vendor_id = ? AND orders.payment_status = ?", vendorID, enums.PaymentStatusPaid)
	q, err := repo.Keyset(q, "orders", params)
	if err != nil {
		return nil, "", err
	}

	var rows []models.Order
	if err := q.Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	for i := range page {
		if err := r.base.DB(ctx).Where("order_id = ? AND vendor_id = ?", page[i].ID, vendorID).
			Order("item_ref ASC").Find(&page[i].Items).Error; err != nil {
			return nil, "", err
		}
	}
	return page, next, nil
}
