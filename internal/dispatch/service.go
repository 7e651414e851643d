// Package dispatch drains order_paid outbox events and sends the order
// confirmations: one to the customer and one to every distinct vendor.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/mailer"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox/payloads"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 200 * time.Millisecond
	defaultClaimLease     = 5 * time.Minute
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond

	consumerCustomer = "order-confirmation-customer"
	consumerVendor   = "order-confirmation-vendor"
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	ClaimTx(tx *gorm.DB, ids []uuid.UUID, until time.Time) error
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

// processedGuard de-duplicates sends per recipient across redeliveries of one event.
type processedGuard interface {
	IsProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type ServiceParams struct {
	Outbox   config.OutboxConfig
	Dispatch config.DispatchConfig
	Logger   *logger.Logger
	DB       dbClient
	Repo     outboxRepository
	Orders   orders.Repository
	Mailer   mailer.Mailer
	Guard    processedGuard
	Metrics  *metrics.PaymentMetrics
}

type Service struct {
	logg          *logger.Logger
	db            dbClient
	repo          outboxRepository
	orders        orders.Repository
	mailer        mailer.Mailer
	guard         processedGuard
	metrics       *metrics.PaymentMetrics
	decoders      decoder
	batchSize     int
	maxAttempts   int
	pollInterval  time.Duration
	claimLease    time.Duration
	retryAttempts uint64
	retryBase     time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repo == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository is required")
	}
	if params.Mailer == nil {
		return nil, errors.New("mailer is required")
	}

	registry := outbox.NewDecoderRegistry()
	registry.Register(enums.EventOrderPaid, 1, outbox.JSONDecoder[payloads.OrderPaidEvent]())

	svc := &Service{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repo,
		orders:        params.Orders,
		mailer:        params.Mailer,
		guard:         params.Guard,
		metrics:       params.Metrics,
		decoders:      registry,
		batchSize:     params.Outbox.BatchSize,
		maxAttempts:   params.Outbox.MaxAttempts,
		pollInterval:  time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
		claimLease:    params.Outbox.ClaimLease,
		retryAttempts: params.Dispatch.RetryAttempts,
		retryBase:     params.Dispatch.RetryBaseDelay,
	}
	if svc.batchSize <= 0 {
		svc.batchSize = defaultBatchSize
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = defaultMaxAttempts
	}
	if svc.pollInterval <= 0 {
		svc.pollInterval = defaultPollInterval
	}
	if svc.claimLease <= 0 {
		svc.claimLease = defaultClaimLease
	}
	if svc.retryAttempts == 0 {
		svc.retryAttempts = defaultRetryAttempts
	}
	if svc.retryBase <= 0 {
		svc.retryBase = defaultRetryBaseDelay
	}
	return svc, nil
}

// Run polls the outbox until ctx is cancelled, backing off while batches fail.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "dispatch worker context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.ProcessBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "dispatch batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = s.pollInterval
		if processed {
			continue
		}
		if err := sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

// ProcessBatch claims one batch of pending events, commits the claim and then
// delivers each event outside the claiming transaction. It reports whether any
// rows were claimed.
func (s *Service) ProcessBatch(ctx context.Context) (bool, error) {
	var events []models.OutboxEvent
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		if err := s.repo.ClaimTx(tx, ids, time.Now().UTC().Add(s.claimLease)); err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		events = rows
		return nil
	})
	if err != nil {
		return false, err
	}

	var errs error
	for _, event := range events {
		evtCtx := s.logg.WithFields(ctx, eventFields(event))
		errs = multierr.Append(errs, s.settle(evtCtx, event, s.handle(evtCtx, event)))
	}
	return len(events) > 0, errs
}

// settle records the delivery outcome. It runs detached from cancellation so a
// shutdown mid-send still releases the claim and counts the attempt.
func (s *Service) settle(ctx context.Context, event models.OutboxEvent, err error) error {
	ctx = context.WithoutCancel(ctx)
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var nonRetry outbox.NonRetryableError
		switch {
		case err == nil:
			if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
				return fmt.Errorf("mark published %s: %w", event.ID, markErr)
			}
		case errors.As(err, &nonRetry):
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dispatch event will not be retried")
			if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
				return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
			}
		case event.AttemptCount+1 >= s.maxAttempts:
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dispatch max attempts reached")
			if markErr := s.repo.MarkTerminalTx(tx, event.ID, fmt.Errorf("max dispatch attempts reached: %w", err), s.maxAttempts); markErr != nil {
				return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
			}
		default:
			if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
				return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
			}
		}
		return nil
	})
}

func (s *Service) handle(ctx context.Context, event models.OutboxEvent) error {
	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return err
	}
	decoded, err := s.decoders.Decode(event.EventType, env.Version, env.Data)
	if err != nil {
		return err
	}
	paid, ok := decoded.(payloads.OrderPaidEvent)
	if !ok {
		return outbox.NewNonRetryableError(fmt.Errorf("unexpected payload %T", decoded))
	}
	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		eventID = event.ID
	}

	order, err := s.orders.FindByRef(ctx, paid.OrderRef)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return outbox.NewNonRetryableError(err)
		}
		return err
	}
	vendors, err := s.orders.FindVendors(ctx, order.VendorIDs())
	if err != nil {
		return err
	}

	ctx = s.logg.WithOrderRef(ctx, order.OrderRef)
	var errs error
	errs = multierr.Append(errs, s.deliver(ctx, eventID, consumerCustomer, "customer", customerConfirmation(order)))
	for _, vendor := range vendors {
		scope := consumerVendor + ":" + vendor.ID.String()
		errs = multierr.Append(errs, s.deliver(ctx, eventID, scope, "vendor", vendorConfirmation(order, vendor)))
	}
	return errs
}

// deliver sends one confirmation with bounded exponential retry. A recipient
// already served for this event is skipped. The recipient is marked served only
// after the send succeeds; a crash between the two repeats the email.
func (s *Service) deliver(ctx context.Context, eventID uuid.UUID, consumer, kind string, msg mailer.Confirmation) error {
	ctx = s.logg.WithFields(ctx, map[string]any{"recipient": kind, "to": msg.ToEmail})
	if s.guard != nil {
		done, err := s.guard.IsProcessed(ctx, consumer, eventID)
		if err != nil {
			return fmt.Errorf("idempotency check %s: %w", consumer, err)
		}
		if done {
			s.metrics.IncDispatch(kind, "skipped")
			return nil
		}
	}

	backoff := retry.WithMaxRetries(s.retryAttempts, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.mailer.SendOrderConfirmation(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.metrics.IncDispatch(kind, "failed")
		s.logg.Error(ctx, "dispatch.failed", err)
		return fmt.Errorf("send %s confirmation: %w", kind, err)
	}
	if s.guard != nil {
		if err := s.guard.MarkProcessed(context.WithoutCancel(ctx), consumer, eventID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dispatch.mark_processed_failed")
		}
	}
	s.metrics.IncDispatch(kind, "sent")
	s.logg.Info(ctx, "dispatch.sent")
	return nil
}

func customerConfirmation(order *models.Order) mailer.Confirmation {
	return mailer.Confirmation{
		ToEmail:  order.Address.Email,
		ToName:   order.Address.FullName,
		OrderRef: order.OrderRef,
		Total:    order.Total,
		Lines:    lines(order.Items, uuid.Nil),
	}
}

func vendorConfirmation(order *models.Order, vendor models.Vendor) mailer.Confirmation {
	return mailer.Confirmation{
		ToEmail:   vendor.Email,
		ToName:    vendor.Name,
		OrderRef:  order.OrderRef,
		Total:     order.Total,
		Lines:     lines(order.Items, vendor.ID),
		ForVendor: true,
	}
}

// lines maps items to mail lines; a non-nil vendorID keeps only that vendor's items.
func lines(items []models.OrderItem, vendorID uuid.UUID) []mailer.Line {
	out := make([]mailer.Line, 0, len(items))
	for _, item := range items {
		if vendorID != uuid.Nil && item.VendorID != vendorID {
			continue
		}
		out = append(out, mailer.Line{ItemRef: item.ItemRef, Title: item.ProductTitle, Qty: item.Qty, Total: item.Total})
	}
	return out
}

func eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
