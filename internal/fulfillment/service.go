package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/notifications"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
)

var (
	ErrItemNotFound  = pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
	ErrNotVendorItem = pkgerrors.New(pkgerrors.CodeForbidden, "order item does not belong to this vendor")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notificationCreator interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, recipients []notifications.Recipient) error
}

// UpdateItemInput carries a vendor's shipment update. Nil fields keep their stored value.
type UpdateItemInput struct {
	OrderRef        string
	ItemRef         string
	Status          enums.OrderStatus
	ShippingService *string
	TrackingID      *string
}

// Tracking is the public view of one item's fulfillment progress.
type Tracking struct {
	OrderRef        string            `json:"order_ref"`
	ItemRef         string            `json:"item_ref"`
	Title           string            `json:"title"`
	Qty             int               `json:"qty"`
	OrderStatus     enums.OrderStatus `json:"order_status"`
	ShippingService *string           `json:"shipping_service,omitempty"`
	TrackingID      *string           `json:"tracking_id,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Service tracks per-item fulfillment independently of sibling items and of
// the order-level status.
type Service struct {
	repo     *Repository
	tx       txRunner
	notifier notificationCreator
	logg     *logger.Logger
}

// NewService wires the tracker. notifier may be nil, in which case shipped
// items do not notify the customer.
func NewService(repo *Repository, tx txRunner, notifier notificationCreator, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fulfillment repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, tx: tx, notifier: notifier, logg: logg}, nil
}

func (s *Service) UpdateItemStatus(ctx context.Context, vendorID uuid.UUID, input UpdateItemInput) (*orders.ItemView, error) {
	orderRef := strings.TrimSpace(input.OrderRef)
	itemRef := strings.TrimSpace(input.ItemRef)
	if orderRef == "" || itemRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference and item reference are required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if vendorID == uuid.Nil {
		return nil, ErrNotVendorItem
	}

	var updated models.OrderItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, orderRef)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil {
			return orders.ErrOrderNotFound
		}
		item, err := repo.FindItem(ctx, order.ID, itemRef)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		if item == nil {
			return ErrItemNotFound
		}
		if item.VendorID != vendorID {
			return ErrNotVendorItem
		}
		if !order.IsPaid() {
			return orders.ErrOrderNotPaid
		}

		shipped := input.Status == enums.OrderStatusShipped && item.OrderStatus != enums.OrderStatusShipped
		updates := map[string]any{"order_status": input.Status}
		item.OrderStatus = input.Status
		if input.ShippingService != nil {
			value := strings.TrimSpace(*input.ShippingService)
			updates["shipping_service"] = value
			item.ShippingService = &value
		}
		if input.TrackingID != nil {
			value := strings.TrimSpace(*input.TrackingID)
			updates["tracking_id"] = value
			item.TrackingID = &value
		}
		if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}
		if shipped && s.notifier != nil {
			recipient := notifications.Recipient{UserID: order.CustomerID, Type: enums.NotificationTypeItemShipped}
			if err := s.notifier.CreateForOrder(ctx, tx, order.ID, []notifications.Recipient{recipient}); err != nil {
				return err
			}
		}
		updated = *item
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderRef(ctx, orderRef)
	logCtx = s.logg.WithFields(logCtx, map[string]any{"item_ref": itemRef, "order_status": string(input.Status)})
	s.logg.Info(logCtx, "fulfillment.item_updated")

	view := orders.NewItemView(updated)
	return &view, nil
}

// Lookup finds an item by its item reference or its carrier tracking id. The
// first match wins; no match is NOT_FOUND.
func (s *Service) Lookup(ctx context.Context, ref string) (*Tracking, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	item, orderRef, err := s.repo.FindByReference(ctx, ref)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order item")
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return &Tracking{
		OrderRef:        orderRef,
		ItemRef:         item.ItemRef,
		Title:           item.ProductTitle,
		Qty:             item.Qty,
		OrderStatus:     item.OrderStatus,
		ShippingService: item.ShippingService,
		TrackingID:      item.TrackingID,
		UpdatedAt:       item.UpdatedAt,
	}, nil
}
