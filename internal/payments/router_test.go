package payments

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
)

type stubOrders struct {
	order     *models.Order
	commitErr error
	commits   []orders.CommitInput
}

func (s *stubOrders) Lookup(_ context.Context, ref string) (*models.Order, error) {
	if s.order == nil || s.order.OrderRef != ref {
		return nil, orders.ErrOrderNotFound
	}
	return s.order, nil
}

func (s *stubOrders) CommitPayment(_ context.Context, input orders.CommitInput) (*models.Order, error) {
	s.commits = append(s.commits, input)
	if s.commitErr != nil {
		return nil, s.commitErr
	}
	return s.order, nil
}

type stubAdapter struct {
	provider enums.PaymentProvider
	verify   func(ctx context.Context, cb Callback) Verdict
}

func (s stubAdapter) Provider() enums.PaymentProvider { return s.provider }

func (s stubAdapter) Verify(ctx context.Context, cb Callback) Verdict { return s.verify(ctx, cb) }

func newRouter(t *testing.T, store *stubOrders, adapters ...Adapter) *Router {
	t.Helper()
	router, err := NewRouter(RouterParams{
		Adapters: adapters,
		Orders:   store,
		Timeout:  50 * time.Millisecond,
		Metrics:  metrics.NewPaymentMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return router
}

func processingOrder() *models.Order {
	return &models.Order{ID: uuid.New(), OrderRef: testRef, PaymentStatus: enums.PaymentStatusProcessing}
}

func TestRouterCommitsPaidVerdicts(t *testing.T) {
	store := &stubOrders{order: processingOrder()}
	var seen Callback
	adapter := stubAdapter{provider: enums.PaymentProviderPaystack, verify: func(_ context.Context, cb Callback) Verdict {
		seen = cb
		return Paid("ref-1")
	}}
	router := newRouter(t, store, adapter)

	result := router.Handle(context.Background(), enums.PaymentProviderPaystack, Callback{OrderRef: " " + testRef + " ", Query: url.Values{"reference": {"ref-1"}}})
	assert.Equal(t, OutcomePaid, result.Outcome)
	require.Len(t, store.commits, 1)
	assert.Equal(t, orders.CommitInput{OrderRef: testRef, Provider: enums.PaymentProviderPaystack, Reference: "ref-1"}, store.commits[0])
	assert.Same(t, store.order, seen.Order, "adapters see the loaded order")
}

func TestRouterTreatsAlreadyPaidAsPaid(t *testing.T) {
	store := &stubOrders{order: processingOrder(), commitErr: orders.ErrAlreadyPaid}
	adapter := stubAdapter{provider: enums.PaymentProviderStripe, verify: func(context.Context, Callback) Verdict { return Paid("pi") }}
	router := newRouter(t, store, adapter)

	assert.Equal(t, OutcomePaid, router.Handle(context.Background(), enums.PaymentProviderStripe, Callback{OrderRef: testRef}).Outcome)

	store.order.PaymentStatus = enums.PaymentStatusPaid
	store.commits = nil
	result := router.Handle(context.Background(), enums.PaymentProviderStripe, Callback{OrderRef: testRef})
	assert.Equal(t, OutcomePaid, result.Outcome)
	assert.Empty(t, store.commits, "a paid order is never re-verified or re-committed")
}

func TestRouterFailsClosed(t *testing.T) {
	store := &stubOrders{order: processingOrder()}
	panicky := stubAdapter{provider: enums.PaymentProviderRazorpay, verify: func(context.Context, Callback) Verdict { panic("boom") }}
	slow := stubAdapter{provider: enums.PaymentProviderFlutterwave, verify: func(ctx context.Context, _ Callback) Verdict {
		<-ctx.Done()
		return Failed(ReasonProviderUnavailable)
	}}
	bogus := stubAdapter{provider: enums.PaymentProviderPayPal, verify: func(context.Context, Callback) Verdict { return Verdict{Outcome: "maybe"} }}
	rejecting := stubAdapter{provider: enums.PaymentProviderPaystack, verify: func(context.Context, Callback) Verdict { return Failed(ReasonNotCompleted) }}
	router := newRouter(t, store, panicky, slow, bogus, rejecting)
	ctx := context.Background()

	cases := map[enums.PaymentProvider]string{
		enums.PaymentProviderRazorpay:    ReasonPanic,
		enums.PaymentProviderFlutterwave: ReasonTimeout,
		enums.PaymentProviderPayPal:      ReasonProviderRejected,
		enums.PaymentProviderPaystack:    ReasonNotCompleted,
		enums.PaymentProviderStripe:      ReasonUnsupportedProvider,
	}
	for provider, reason := range cases {
		result := router.Handle(ctx, provider, Callback{OrderRef: testRef})
		assert.Equal(t, OutcomeFailed, result.Outcome, provider)
		assert.Equal(t, reason, result.Reason, provider)
	}
	assert.Empty(t, store.commits)

	result := router.Handle(ctx, enums.PaymentProviderPaystack, Callback{OrderRef: "ORD-UNKNOWN"})
	assert.Equal(t, ReasonOrderNotFound, result.Reason)
}

func TestRouterTamperedRazorpaySignatureLeavesOrderProcessing(t *testing.T) {
	store := &stubOrders{order: processingOrder()}
	store.order.Sessions = []models.PaymentSession{{Provider: enums.PaymentProviderRazorpay, SessionID: "order_1"}}
	adapter := NewRazorpayAdapter(razorpayTestConfig(), testClient("razorpay"))
	router := newRouter(t, store, adapter)

	form := url.Values{
		"razorpay_order_id":   {"order_1"},
		"razorpay_payment_id": {"pay_1"},
		"razorpay_signature":  {signRazorpay("not-the-secret", "order_1", "pay_1")},
	}
	result := router.Handle(context.Background(), enums.PaymentProviderRazorpay, Callback{OrderRef: testRef, Form: form})
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, ReasonSignatureMismatch, result.Reason)
	assert.Empty(t, store.commits)
	assert.Equal(t, enums.PaymentStatusProcessing, store.order.PaymentStatus)
}

func TestRouterCommitFailureIsFailed(t *testing.T) {
	store := &stubOrders{order: processingOrder(), commitErr: assert.AnError}
	adapter := stubAdapter{provider: enums.PaymentProviderStripe, verify: func(context.Context, Callback) Verdict { return Paid("pi") }}
	result := newRouter(t, store, adapter).Handle(context.Background(), enums.PaymentProviderStripe, Callback{OrderRef: testRef})
	assert.Equal(t, ReasonCommitFailed, result.Reason)
}

func TestRouterReusedReferenceIsFailed(t *testing.T) {
	store := &stubOrders{order: processingOrder(), commitErr: orders.ErrReferenceUsed}
	adapter := stubAdapter{provider: enums.PaymentProviderPaystack, verify: func(context.Context, Callback) Verdict { return Paid("ps_ref_1") }}
	result := newRouter(t, store, adapter).Handle(context.Background(), enums.PaymentProviderPaystack, Callback{OrderRef: testRef})
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, ReasonReferenceReused, result.Reason)
}

func TestRedirectURL(t *testing.T) {
	assert.Equal(t, "https://shop.test/payment_status/ORD-1/?payment_status=paid", RedirectURL("https://shop.test/", "ORD-1", OutcomePaid))
	assert.Equal(t, "https://shop.test/payment_status/ORD-1/?payment_status=failed", RedirectURL("https://shop.test", "ORD-1", OutcomeFailed))
}
