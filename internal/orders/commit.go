package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/notifications"
	dbpkg "github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox/payloads"
)

const providerReferenceIndex = "ux_orders_provider_reference"

// CommitInput is a verified payment handed to the state machine.
type CommitInput struct {
	OrderRef  string
	Provider  enums.PaymentProvider
	Reference string
}

// CommitPayment moves the order from Processing to Paid exactly once. The winning
// call clears the cart, creates the customer and vendor notifications and queues
// the order_paid event inside the same transaction. Every other call, sequential
// or concurrent, gets ErrAlreadyPaid and causes no side effects. A provider
// reference that already settled a different order yields ErrReferenceUsed.
func (s *service) CommitPayment(ctx context.Context, input CommitInput) (*models.Order, error) {
	ref, err := normalizeRef(input.OrderRef)
	if err != nil {
		return nil, err
	}
	if !input.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment provider")
	}
	if strings.TrimSpace(input.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider reference is required")
	}
	ctx = s.logg.WithOrderRef(ctx, ref)
	ctx = s.logg.WithField(ctx, "provider", input.Provider.String())

	var committed *models.Order
	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByRef(ctx, ref)
		if err != nil {
			return repoErr(err, "load order")
		}
		if order.IsPaid() {
			return ErrAlreadyPaid
		}

		won, err := repo.MarkPaid(ctx, order.ID, input.Provider, input.Reference, now)
		if dbpkg.IsUniqueViolation(err, providerReferenceIndex) {
			return ErrReferenceUsed
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !won {
			return ErrAlreadyPaid
		}

		provider := input.Provider
		reference := input.Reference
		order.PaymentStatus = enums.PaymentStatusPaid
		order.PaymentMethod = &provider
		order.ProviderReference = &reference
		order.PaidAt = &now

		if strings.TrimSpace(order.CartID) != "" {
			if err := s.cartLines.WithTx(tx).DeleteAll(ctx, order.CartID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
		}

		vendors, err := repo.FindVendors(ctx, order.VendorIDs())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendors")
		}
		recipients := make([]notifications.Recipient, 0, len(vendors)+1)
		recipients = append(recipients, notifications.Recipient{UserID: order.CustomerID, Type: enums.NotificationTypeOrderPlaced})
		for _, v := range vendors {
			recipients = append(recipients, notifications.Recipient{UserID: v.UserID, Type: enums.NotificationTypeNewOrder})
		}
		if err := s.notifier.CreateForOrder(ctx, tx, order.ID, recipients); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.CustomerID, Role: string(enums.RoleCustomer)},
			Data: payloads.OrderPaidEvent{
				OrderID:    order.ID,
				OrderRef:   order.OrderRef,
				CustomerID: order.CustomerID,
				Email:      order.Address.Email,
				FullName:   order.Address.FullName,
				Total:      order.Total,
				Provider:   provider,
				VendorIDs:  order.VendorIDs(),
			},
			Version:    1,
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order_paid event")
		}

		committed = order
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyPaid):
			s.metrics.IncCommit(input.Provider.String(), "already_paid")
			s.logg.Info(ctx, "payment.already_paid")
		case errors.Is(err, ErrReferenceUsed):
			s.metrics.IncCommit(input.Provider.String(), "reference_reused")
			s.logg.Warn(s.logg.WithField(ctx, "provider_reference", input.Reference), "payment.reference_reused")
		}
		return nil, err
	}

	s.metrics.IncCommit(input.Provider.String(), "committed")
	s.logg.Info(s.logg.WithField(ctx, "vendor_count", len(committed.Vendors)), "payment.committed")
	return committed, nil
}
