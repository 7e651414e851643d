package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/orders"
	dbpkg "github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/money"
)

const ReasonNoEligibleItems = "no_eligible_items"

var (
	ErrCouponNotFound  = pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	ErrAlreadyApplied  = pkgerrors.New(pkgerrors.CodeConflict, "coupon already applied to this order")
	ErrCouponForbidden = pkgerrors.New(pkgerrors.CodeForbidden, "coupon belongs to another vendor")
	ErrCodeTaken       = pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")

	errNoEligibleItems = errors.New("no eligible items")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service applies coupons to orders and manages vendor coupons.
type Service interface {
	Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error)
	Create(ctx context.Context, vendorID uuid.UUID, input CreateInput) (*models.Coupon, error)
	List(ctx context.Context, vendorID uuid.UUID) ([]models.Coupon, error)
	Update(ctx context.Context, vendorID, couponID uuid.UUID, input UpdateInput) (*models.Coupon, error)
	Delete(ctx context.Context, vendorID, couponID uuid.UUID) error
}

// ApplyInput names the customer's order and the code to redeem.
type ApplyInput struct {
	OrderRef   string
	CustomerID uuid.UUID
	Code       string
}

// ApplyResult reports whether the coupon changed the order. When no item
// belongs to the coupon's vendor Applied is false and nothing is persisted.
type ApplyResult struct {
	Applied  bool
	Reason   string
	Discount decimal.Decimal
	Order    *models.Order
}

type CreateInput struct {
	Code     string `json:"code" validate:"required,max=64"`
	Discount int    `json:"discount" validate:"required,min=1,max=100"`
	Active   *bool  `json:"active"`
}

type UpdateInput struct {
	Code     *string `json:"code" validate:"omitempty,max=64"`
	Discount *int    `json:"discount" validate:"omitempty,min=1,max=100"`
	Active   *bool   `json:"active"`
}

type service struct {
	repo   Repository
	orders orders.Repository
	tx     txRunner
	logg   *logger.Logger
}

func NewService(repo Repository, ordersRepo orders.Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, orders: ordersRepo, tx: tx, logg: logg}, nil
}

// Apply discounts the coupon vendor's items on the order. Membership check,
// discount writes and the membership record share one transaction with the
// order row locked.
func (s *service) Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	ref := strings.TrimSpace(input.OrderRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}

	result := &ApplyResult{Discount: decimal.Zero}
	var skipped *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		repo := s.repo.WithTx(tx)

		order, err := ordersRepo.LockByRef(ctx, ref)
		if err != nil {
			return err
		}
		if order.CustomerID != input.CustomerID {
			return orders.ErrOrderNotFound
		}
		if order.IsPaid() {
			return orders.ErrAlreadyPaid
		}

		coupon, err := repo.FindByCode(ctx, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
		}
		if coupon == nil || !coupon.Active {
			return ErrCouponNotFound
		}
		for _, applied := range order.Coupons {
			if applied.CouponID == coupon.ID {
				return ErrAlreadyApplied
			}
		}
		if err := repo.InsertOrderCoupon(ctx, order.ID, coupon.ID); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return ErrAlreadyApplied
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon")
		}

		total := decimal.Zero
		marks := make([]models.OrderItemCoupon, 0, len(order.Items))
		for _, item := range order.Items {
			if item.VendorID != coupon.VendorID || item.HasCoupon(coupon.ID) {
				continue
			}
			discount := money.PercentOf(item.Total, coupon.Discount)
			if !discount.IsPositive() {
				continue
			}
			if err := repo.DiscountItem(ctx, item.ID, discount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discount item")
			}
			marks = append(marks, models.OrderItemCoupon{OrderItemID: item.ID, CouponID: coupon.ID})
			total = total.Add(discount)
		}
		if !total.IsPositive() {
			skipped = order
			return errNoEligibleItems
		}
		if err := repo.InsertItemCoupons(ctx, marks); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record item coupons")
		}
		if err := repo.DiscountOrder(ctx, order.ID, total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discount order")
		}

		updated, err := ordersRepo.FindByRef(ctx, ref)
		if err != nil {
			return err
		}
		if !updated.Total.Equal(money.OrderTotal(updated.SubTotal, updated.ShippingTotal, updated.Tax, updated.ServiceFee)) {
			return pkgerrors.New(pkgerrors.CodeInternal, "order total does not match its components")
		}
		result.Applied = true
		result.Discount = total
		result.Order = updated
		return nil
	})
	if errors.Is(err, errNoEligibleItems) {
		s.logg.Info(s.logg.WithOrderRef(ctx, ref), "coupon.no_eligible_items")
		return &ApplyResult{Reason: ReasonNoEligibleItems, Discount: decimal.Zero, Order: skipped}, nil
	}
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderRef(ctx, ref)
	ctx = s.logg.WithFields(ctx, map[string]any{"code": code, "discount": result.Discount.StringFixed(2)})
	s.logg.Info(ctx, "coupon.applied")
	return result, nil
}

func (s *service) Create(ctx context.Context, vendorID uuid.UUID, input CreateInput) (*models.Coupon, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if err := validateDiscount(input.Discount); err != nil {
		return nil, err
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	coupon := &models.Coupon{VendorID: vendorID, Code: code, Discount: input.Discount, Active: active}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_coupons_code") {
			return nil, ErrCodeTaken
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return coupon, nil
}

func (s *service) List(ctx context.Context, vendorID uuid.UUID) ([]models.Coupon, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	rows, err := s.repo.ListForVendor(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, vendorID, couponID uuid.UUID, input UpdateInput) (*models.Coupon, error) {
	coupon, err := s.owned(ctx, vendorID, couponID)
	if err != nil {
		return nil, err
	}
	if input.Code != nil {
		code := strings.TrimSpace(*input.Code)
		if code == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
		}
		coupon.Code = code
	}
	if input.Discount != nil {
		if err := validateDiscount(*input.Discount); err != nil {
			return nil, err
		}
		coupon.Discount = *input.Discount
	}
	if input.Active != nil {
		coupon.Active = *input.Active
	}
	if err := s.repo.Save(ctx, coupon); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_coupons_code") {
			return nil, ErrCodeTaken
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coupon")
	}
	return coupon, nil
}

func (s *service) Delete(ctx context.Context, vendorID, couponID uuid.UUID) error {
	if _, err := s.owned(ctx, vendorID, couponID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, couponID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete coupon")
	}
	return nil
}

func (s *service) owned(ctx context.Context, vendorID, couponID uuid.UUID) (*models.Coupon, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	coupon, err := s.repo.FindByID(ctx, couponID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	if coupon.VendorID != vendorID {
		return nil, ErrCouponForbidden
	}
	return coupon, nil
}

func validateDiscount(pct int) error {
	if pct < 1 || pct > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 1 and 100")
	}
	return nil
}
