package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/mailer"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox/payloads"
)

type recordingMailer struct {
	mu     sync.Mutex
	sent   []mailer.Confirmation
	failTo map[string]bool
	// onSend runs before each send without holding the lock; a non-nil error fails the send.
	onSend func(ctx context.Context, msg mailer.Confirmation) error
}

func (m *recordingMailer) SendOrderConfirmation(ctx context.Context, msg mailer.Confirmation) error {
	if m.onSend != nil {
		if err := m.onSend(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[msg.ToEmail] {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.ToEmail)
	}
	return out
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return "1", nil
	}
	return "", nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = map[string]bool{}
	}
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "bz:idempotency:" + scope + ":" + id
}

func (s *memoryStore) marked(consumer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.keys {
		if strings.Contains(key, ":"+consumer+":") {
			return true
		}
	}
	return false
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.keys, k)
	}
	return nil
}

type fixture struct {
	client  *db.Client
	outbox  *outbox.Repository
	mail    *recordingMailer
	store   *memoryStore
	svc     *Service
	order   models.Order
	vendorA models.Vendor
	vendorB models.Vendor
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	outboxRepo := outbox.NewRepository(client.DB())
	mail := &recordingMailer{failTo: map[string]bool{}}
	store := &memoryStore{}
	guard, err := idempotency.NewManager(store, time.Hour)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Outbox:   config.OutboxConfig{BatchSize: 10, PollIntervalMS: 5, MaxAttempts: maxAttempts},
		Dispatch: config.DispatchConfig{RetryAttempts: 2, RetryBaseDelay: time.Millisecond},
		Logger:   logger.Nop(),
		DB:       client,
		Repo:     outboxRepo,
		Orders:   orders.NewRepository(client.DB()),
		Mailer:   mail,
		Guard:    guard,
		Metrics:  metrics.NewPaymentMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	vendorA := dbtest.Vendor(t, client, "alpha")
	vendorB := dbtest.Vendor(t, client, "beta")
	p1 := dbtest.Product(t, client, vendorA.ID, "20.00", "5.00", 3)
	p2 := dbtest.Product(t, client, vendorB.ID, "10.00", "0", 3)
	p3 := dbtest.Product(t, client, vendorA.ID, "4.00", "0", 3)
	order := dbtest.Order(t, client, uuid.New(), "cart-9", p1, p2, p3)

	return &fixture{client: client, outbox: outboxRepo, mail: mail, store: store, svc: svc, order: order, vendorA: vendorA, vendorB: vendorB}
}

func (f *fixture) emit(t *testing.T, eventType enums.OutboxEventType, data any) {
	t.Helper()
	emitter := outbox.NewService(f.outbox, nil)
	require.NoError(t, f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return emitter.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   f.order.ID,
			Data:          data,
		})
	}))
}

func (f *fixture) paidEvent() payloads.OrderPaidEvent {
	return payloads.OrderPaidEvent{OrderID: f.order.ID, OrderRef: f.order.OrderRef, CustomerID: f.order.CustomerID}
}

func (f *fixture) row(t *testing.T) models.OutboxEvent {
	t.Helper()
	rows, err := f.outbox.FindByAggregate(nil, f.order.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestProcessBatchSendsCustomerAndEachVendor(t *testing.T) {
	f := newFixture(t, 5)
	f.emit(t, enums.EventOrderPaid, f.paidEvent())

	processed, err := f.svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	assert.ElementsMatch(t, []string{"customer@example.test", f.vendorA.Email, f.vendorB.Email}, f.mail.recipients())
	for _, msg := range f.mail.sent {
		switch msg.ToEmail {
		case f.vendorA.Email:
			assert.True(t, msg.ForVendor)
			assert.Len(t, msg.Lines, 2)
		case f.vendorB.Email:
			assert.Len(t, msg.Lines, 1)
		default:
			assert.False(t, msg.ForVendor)
			assert.Len(t, msg.Lines, 3)
		}
	}
	assert.NotNil(t, f.row(t).PublishedAt)

	processed, err = f.svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Len(t, f.mail.sent, 3)
}

func TestProcessBatchRetriesOnlyFailedRecipients(t *testing.T) {
	f := newFixture(t, 5)
	f.emit(t, enums.EventOrderPaid, f.paidEvent())
	f.mail.failTo[f.vendorB.Email] = true

	_, err := f.svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	row := f.row(t)
	assert.Nil(t, row.PublishedAt)
	assert.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Contains(t, *row.LastError, "smtp unavailable")
	assert.Len(t, f.mail.sent, 2)

	f.mail.failTo = map[string]bool{}
	_, err = f.svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, f.row(t).PublishedAt)
	assert.ElementsMatch(t, []string{"customer@example.test", f.vendorA.Email, f.vendorB.Email}, f.mail.recipients())
}

func TestProcessBatchParksExhaustedAndUndecodableEvents(t *testing.T) {
	f := newFixture(t, 1)
	f.emit(t, enums.EventOrderPaid, f.paidEvent())
	f.mail.failTo["customer@example.test"] = true

	_, err := f.svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	row := f.row(t)
	assert.Equal(t, 1, row.AttemptCount)
	assert.Contains(t, *row.LastError, "max dispatch attempts reached")

	processed, err := f.svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed, "parked rows are not claimed again")
}

func TestProcessBatchParksUnknownOrders(t *testing.T) {
	f := newFixture(t, 5)
	event := f.paidEvent()
	event.OrderRef = "ORD-GONE"
	f.emit(t, enums.EventOrderPaid, event)

	_, err := f.svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	row := f.row(t)
	assert.Equal(t, 5, row.AttemptCount)
	assert.Empty(t, f.mail.sent)
}

func TestProcessBatchRedeliversAfterCancelledSend(t *testing.T) {
	f := newFixture(t, 5)
	f.emit(t, enums.EventOrderPaid, f.paidEvent())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.mail.onSend = func(sendCtx context.Context, msg mailer.Confirmation) error {
		if msg.ToEmail != "customer@example.test" {
			return nil
		}
		f.mail.onSend = nil
		cancel()
		return sendCtx.Err()
	}

	_, err := f.svc.ProcessBatch(ctx)
	require.NoError(t, err)
	row := f.row(t)
	assert.Nil(t, row.PublishedAt)
	assert.Nil(t, row.ClaimedUntil, "claim released despite the cancelled context")
	assert.Equal(t, 1, row.AttemptCount)
	assert.False(t, f.store.marked(consumerCustomer), "failed recipient is not marked served")

	_, err = f.svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, f.row(t).PublishedAt)
	assert.ElementsMatch(t, []string{"customer@example.test", f.vendorA.Email, f.vendorB.Email}, f.mail.recipients())
}

func TestProcessBatchSendsOutsideClaimTransaction(t *testing.T) {
	f := newFixture(t, 5)
	f.emit(t, enums.EventOrderPaid, f.paidEvent())

	checked := false
	f.mail.onSend = func(ctx context.Context, _ mailer.Confirmation) error {
		if checked {
			return nil
		}
		checked = true
		// the sqlite test pool has one connection, so this read only succeeds once the claim committed
		row := f.row(t)
		assert.NotNil(t, row.ClaimedUntil)
		assert.Nil(t, row.PublishedAt)

		processed, err := f.svc.ProcessBatch(ctx)
		assert.NoError(t, err)
		assert.False(t, processed, "leased rows are not claimed twice")
		return nil
	}

	processed, err := f.svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.True(t, checked)

	row := f.row(t)
	assert.NotNil(t, row.PublishedAt)
	assert.Nil(t, row.ClaimedUntil)
	assert.Len(t, f.mail.sent, 3)
}

func TestExpiredClaimIsReclaimed(t *testing.T) {
	f := newFixture(t, 5)
	f.emit(t, enums.EventOrderPaid, f.paidEvent())
	stale := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("aggregate_id = ?", f.order.ID).
		Update("claimed_until", stale).Error)

	processed, err := f.svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.NotNil(t, f.row(t).PublishedAt)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.svc.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNextBackoffCaps(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, time.Second, 10*time.Second))
	assert.Equal(t, 10*time.Second, nextBackoff(8*time.Second, time.Second, 10*time.Second))
	assert.Equal(t, 2*time.Second, nextBackoff(0, time.Second, 10*time.Second))
}
