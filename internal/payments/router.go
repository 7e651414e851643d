package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
)

const defaultVerifyTimeout = 10 * time.Second

type orderCommitter interface {
	Lookup(ctx context.Context, orderRef string) (*models.Order, error)
	CommitPayment(ctx context.Context, input orders.CommitInput) (*models.Order, error)
}

// RouterParams wires the verification router.
type RouterParams struct {
	Adapters []Adapter
	Orders   orderCommitter
	Timeout  time.Duration
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger
}

// Router dispatches provider callbacks to the adapter named by the provider
// tag and hands Paid verdicts to the order state machine.
type Router struct {
	adapters map[enums.PaymentProvider]Adapter
	orders   orderCommitter
	timeout  time.Duration
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

func NewRouter(params RouterParams) (*Router, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order committer required")
	}
	adapters := make(map[enums.PaymentProvider]Adapter, len(params.Adapters))
	for _, adapter := range params.Adapters {
		if adapter == nil {
			continue
		}
		adapters[adapter.Provider()] = adapter
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Router{adapters: adapters, orders: params.Orders, timeout: timeout, metrics: params.Metrics, logg: logg}, nil
}

// Result is the user-visible outcome of a callback.
type Result struct {
	OrderRef string
	Outcome  Outcome
	Reason   string
}

// Handle verifies the callback and commits the payment when the provider
// confirms it. Every failure path yields OutcomeFailed.
func (r *Router) Handle(ctx context.Context, provider enums.PaymentProvider, cb Callback) Result {
	ref := strings.TrimSpace(cb.OrderRef)
	ctx = r.logg.WithOrderRef(ctx, ref)
	ctx = r.logg.WithField(ctx, "provider", provider.String())

	adapter, ok := r.adapters[provider]
	if !ok {
		return r.fail(ctx, ref, ReasonUnsupportedProvider)
	}

	order, err := r.orders.Lookup(ctx, ref)
	if err != nil {
		return r.fail(ctx, ref, ReasonOrderNotFound)
	}
	if order.IsPaid() {
		r.logg.Info(ctx, "payment.already_paid")
		return Result{OrderRef: ref, Outcome: OutcomePaid}
	}
	cb.OrderRef = ref
	cb.Order = order

	started := time.Now()
	verdict := r.verify(ctx, adapter, cb)
	r.metrics.ObserveVerification(provider.String(), string(verdict.Outcome), time.Since(started))
	if !verdict.IsPaid() {
		return r.fail(ctx, ref, verdict.Reason)
	}
	r.logg.Info(r.logg.WithField(ctx, "provider_reference", verdict.Reference), "payment.verified")

	_, err = r.orders.CommitPayment(ctx, orders.CommitInput{OrderRef: ref, Provider: provider, Reference: verdict.Reference})
	switch {
	case err == nil, errors.Is(err, orders.ErrAlreadyPaid):
		return Result{OrderRef: ref, Outcome: OutcomePaid}
	case errors.Is(err, orders.ErrReferenceUsed):
		return r.fail(ctx, ref, ReasonReferenceReused)
	default:
		r.logg.Error(ctx, "payment.commit_failed", err)
		return Result{OrderRef: ref, Outcome: OutcomeFailed, Reason: ReasonCommitFailed}
	}
}

func (r *Router) verify(ctx context.Context, adapter Adapter, cb Callback) (verdict Verdict) {
	vctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			r.logg.Error(ctx, "payment.verification_panic", fmt.Errorf("%v", rec))
			verdict = Failed(ReasonPanic)
		}
	}()

	verdict = adapter.Verify(vctx, cb)
	if verdict.Outcome != OutcomePaid && verdict.Outcome != OutcomeFailed {
		return Failed(ReasonProviderRejected)
	}
	if !verdict.IsPaid() && errors.Is(vctx.Err(), context.DeadlineExceeded) {
		return Failed(ReasonTimeout)
	}
	return verdict
}

func (r *Router) fail(ctx context.Context, ref, reason string) Result {
	r.logg.Warn(r.logg.WithField(ctx, "reason", reason), "payment.verification_failed")
	return Result{OrderRef: ref, Outcome: OutcomeFailed, Reason: reason}
}

// RedirectURL is the storefront payment-status page for an outcome.
func RedirectURL(storefrontURL, orderRef string, outcome Outcome) string {
	return fmt.Sprintf("%s/payment_status/%s/?payment_status=%s",
		strings.TrimRight(storefrontURL, "/"), url.PathEscape(orderRef), outcome)
}
