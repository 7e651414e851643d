package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records provider verification, commit and dispatch outcomes.
type PaymentMetrics struct {
	verifyDuration *prometheus.HistogramVec
	verifications  *prometheus.CounterVec
	commits        *prometheus.CounterVec
	dispatches     *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	verifyDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_verification_duration_seconds",
		Help:    "Duration of provider verification calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Provider verification verdicts by outcome.",
	}, []string{"provider", "outcome"})
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_commits_total",
		Help: "Order payment transitions by result.",
	}, []string{"provider", "result"})
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_confirmation_dispatch_total",
		Help: "Order confirmation sends by recipient kind and result.",
	}, []string{"recipient", "result"})
	reg.MustRegister(verifyDuration, verifications, commits, dispatches)
	return &PaymentMetrics{
		verifyDuration: verifyDuration,
		verifications:  verifications,
		commits:        commits,
		dispatches:     dispatches,
	}
}

// ObserveVerification records one adapter verdict and its latency.
func (m *PaymentMetrics) ObserveVerification(provider, outcome string, duration time.Duration) {
	if m == nil || m.verifications == nil {
		return
	}
	provider = normalizeLabel(provider)
	m.verifyDuration.WithLabelValues(provider).Observe(duration.Seconds())
	m.verifications.WithLabelValues(provider, normalizeLabel(outcome)).Inc()
}

// IncCommit counts a state machine result (committed, already_paid).
func (m *PaymentMetrics) IncCommit(provider, result string) {
	if m == nil || m.commits == nil {
		return
	}
	m.commits.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

// IncDispatch counts a confirmation send (recipient customer|vendor, result sent|failed).
func (m *PaymentMetrics) IncDispatch(recipient, result string) {
	if m == nil || m.dispatches == nil {
		return
	}
	m.dispatches.WithLabelValues(normalizeLabel(recipient), normalizeLabel(result)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
