package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/cart"
	"github.com/angelmondragon/bazaar-backend/internal/notifications"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/pagination"
)

var (
	ErrOrderNotFound  = pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	ErrAlreadyPaid    = pkgerrors.New(pkgerrors.CodeConflict, "order already paid")
	ErrNotVendorOrder = pkgerrors.New(pkgerrors.CodeForbidden, "order does not include this vendor")
	ErrOrderNotPaid   = pkgerrors.New(pkgerrors.CodeForbidden, "order is not paid")
	ErrReferenceUsed  = pkgerrors.New(pkgerrors.CodeConflict, "provider reference already settled another order")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type notificationCreator interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, recipients []notifications.Recipient) error
}

// Service exposes order reads, the payment state machine and vendor order operations.
type Service interface {
	Lookup(ctx context.Context, orderRef string) (*models.Order, error)
	Get(ctx context.Context, orderRef string, customerID uuid.UUID) (*models.Order, error)
	PaymentStatus(ctx context.Context, orderRef string, customerID uuid.UUID) (*PaymentStatusView, error)
	ForCheckout(ctx context.Context, orderRef string, customerID uuid.UUID) (*models.Order, error)
	BindProviderSession(ctx context.Context, orderID uuid.UUID, provider enums.PaymentProvider, sessionID string) error
	CommitPayment(ctx context.Context, input CommitInput) (*models.Order, error)
	ListVendorOrders(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*VendorOrderList, error)
	GetVendorOrder(ctx context.Context, vendorID uuid.UUID, orderRef string) (*OrderView, error)
	UpdateOrderStatus(ctx context.Context, vendorID uuid.UUID, orderRef string, status enums.OrderStatus) error
}

// ServiceParams carries the order service dependencies.
type ServiceParams struct {
	Repo          Repository
	Tx            txRunner
	CartLines     cart.LineRepository
	Notifications notificationCreator
	Outbox        outboxPublisher
	Metrics       *metrics.PaymentMetrics
	Logger        *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	cartLines cart.LineRepository
	notifier  notificationCreator
	outbox    outboxPublisher
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.CartLines == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notification creator required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		cartLines: params.CartLines,
		notifier:  params.Notifications,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      logg,
	}, nil
}

func (s *service) Lookup(ctx context.Context, orderRef string) (*models.Order, error) {
	ref, err := normalizeRef(orderRef)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByRef(ctx, ref)
	if err != nil {
		return nil, repoErr(err, "load order")
	}
	return order, nil
}

// Get returns the order when it belongs to the customer. Other customers see NOT_FOUND.
func (s *service) Get(ctx context.Context, orderRef string, customerID uuid.UUID) (*models.Order, error) {
	order, err := s.Lookup(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if customerID == uuid.Nil || order.CustomerID != customerID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *service) PaymentStatus(ctx context.Context, orderRef string, customerID uuid.UUID) (*PaymentStatusView, error) {
	order, err := s.Get(ctx, orderRef, customerID)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusView{
		OrderRef:      order.OrderRef,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		Total:         order.Total,
	}, nil
}

// ForCheckout loads the customer's order for provider checkout creation and rejects Paid orders.
func (s *service) ForCheckout(ctx context.Context, orderRef string, customerID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderRef, customerID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid() {
		return nil, ErrAlreadyPaid
	}
	return order, nil
}

func (s *service) BindProviderSession(ctx context.Context, orderID uuid.UUID, provider enums.PaymentProvider, sessionID string) error {
	if orderID == uuid.Nil || strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and session id are required")
	}
	if !provider.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment provider")
	}
	if err := s.repo.AddProviderSession(ctx, orderID, provider, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind provider session")
	}
	return nil
}

func (s *service) ListVendorOrders(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*VendorOrderList, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	rows, next, err := s.repo.ListPaidForVendor(ctx, vendorID, params)
	if err != nil {
		return nil, repoErr(err, "list vendor orders")
	}
	list := &VendorOrderList{Orders: make([]OrderView, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Orders = append(list.Orders, NewOrderView(&rows[i], nil))
	}
	return list, nil
}

// GetVendorOrder returns the order restricted to the vendor's own items.
func (s *service) GetVendorOrder(ctx context.Context, vendorID uuid.UUID, orderRef string) (*OrderView, error) {
	order, err := s.Lookup(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if err := authorizeVendor(order, vendorID); err != nil {
		return nil, err
	}
	view := NewOrderView(order, func(item models.OrderItem) bool { return item.VendorID == vendorID })
	return &view, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, vendorID uuid.UUID, orderRef string, status enums.OrderStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	ref, err := normalizeRef(orderRef)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByRef(ctx, ref)
		if err != nil {
			return repoErr(err, "load order")
		}
		if err := authorizeVendor(order, vendorID); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, order.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return nil
	})
}

// authorizeVendor enforces the vendor-side precondition: the vendor contributed items and the order is Paid.
func authorizeVendor(order *models.Order, vendorID uuid.UUID) error {
	if vendorID == uuid.Nil || !order.HasVendor(vendorID) {
		return ErrNotVendorOrder
	}
	if !order.IsPaid() {
		return ErrOrderNotPaid
	}
	return nil
}

func normalizeRef(orderRef string) (string, error) {
	ref := strings.TrimSpace(orderRef)
	if ref == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	return ref, nil
}

func repoErr(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
