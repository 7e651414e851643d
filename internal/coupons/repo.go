package coupons

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/repo"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
)

// Repository persists coupons and their application records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, coupon *models.Coupon) error
	Save(ctx context.Context, coupon *models.Coupon) error
	Delete(ctx context.Context, couponID uuid.UUID) error
	FindByID(ctx context.Context, couponID uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Coupon, error)
	InsertOrderCoupon(ctx context.Context, orderID, couponID uuid.UUID) error
	InsertItemCoupons(ctx context.Context, rows []models.OrderItemCoupon) error
	DiscountItem(ctx context.Context, itemID uuid.UUID, amount decimal.Decimal) error
	DiscountOrder(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.base.DB(ctx).Create(coupon).Error
}

func (r *repository) Save(ctx context.Context, coupon *models.Coupon) error {
	return r.base.DB(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", coupon.ID).
		Updates(map[string]any{
			"code":     coupon.Code,
			"discount": coupon.Discount,
			"active":   coupon.Active,
		}).Error
}

func (r *repository) Delete(ctx context.Context, couponID uuid.UUID) error {
	return r.base.DB(ctx).Where("id = ?", couponID).Delete(&models.Coupon{}).Error
}

// FindByID returns nil without error when the coupon does not exist.
func (r *repository) FindByID(ctx context.Context, couponID uuid.UUID) (*models.Coupon, error) {
	return r.first(r.base.DB(ctx).Where("id = ?", couponID))
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return r.first(r.base.DB(ctx).Where("code = ?", code))
}

func (r *repository) first(q *gorm.DB) (*models.Coupon, error) {
	var coupon models.Coupon
	err := q.First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Coupon, error) {
	var rows []models.Coupon
	err := r.base.DB(ctx).Where("vendor_id = ?", vendorID).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) InsertOrderCoupon(ctx context.Context, orderID, couponID uuid.UUID) error {
	return r.base.DB(ctx).Create(&models.OrderCoupon{OrderID: orderID, CouponID: couponID}).Error
}

func (r *repository) InsertItemCoupons(ctx context.Context, rows []models.OrderItemCoupon) error {
	if len(rows) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&rows).Error
}

// DiscountItem lowers the item total and raises its saved amount relative to the stored values.
func (r *repository) DiscountItem(ctx context.Context, itemID uuid.UUID, amount decimal.Decimal) error {
	return r.base.DB(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"total": gorm.Expr("total - ?", amount),
			"saved": gorm.Expr("saved + ?", amount),
		}).Error
}

// DiscountOrder lowers total and sub_total together so the total formula still holds.
func (r *repository) DiscountOrder(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error {
	return r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"total":     gorm.Expr("total - ?", amount),
			"sub_total": gorm.Expr("sub_total - ?", amount),
			"saved":     gorm.Expr("saved + ?", amount),
		}).Error
}
