package payments

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/money"
)

// Outcome is the normalized result of a provider verification.
type Outcome string

const (
	OutcomePaid   Outcome = "paid"
	OutcomeFailed Outcome = "failed"
)

// Failure reasons recorded on failed verdicts.
const (
	ReasonMissingParameter    = "missing_parameter"
	ReasonProviderUnavailable = "provider_unavailable"
	ReasonProviderRejected    = "provider_rejected"
	ReasonNotCompleted        = "payment_not_completed"
	ReasonSignatureMismatch   = "signature_mismatch"
	ReasonBindingMismatch     = "binding_mismatch"
	ReasonAmountMismatch      = "amount_mismatch"
	ReasonReferenceReused     = "reference_reused"
	ReasonUnsupportedProvider = "unsupported_provider"
	ReasonOrderNotFound       = "order_not_found"
	ReasonCommitFailed        = "commit_failed"
	ReasonPanic               = "verification_panic"
	ReasonTimeout             = "timeout"
)

// Verdict is exactly one of Paid(reference) or Failed(reason).
type Verdict struct {
	Outcome   Outcome
	Reference string
	Reason    string
}

func Paid(reference string) Verdict {
	return Verdict{Outcome: OutcomePaid, Reference: reference}
}

func Failed(reason string) Verdict {
	return Verdict{Outcome: OutcomeFailed, Reason: reason}
}

// IsPaid reports whether the provider confirmed the payment.
func (v Verdict) IsPaid() bool {
	return v.Outcome == OutcomePaid
}

// Callback carries the provider's redirect or posted parameters along with the
// order the callback names.
type Callback struct {
	OrderRef string
	Query    url.Values
	Form     url.Values
	Order    *models.Order
}

// Param returns the first non-empty value for key from the form, then the query.
func (c Callback) Param(key string) string {
	if v := c.Form.Get(key); v != "" {
		return v
	}
	return c.Query.Get(key)
}

// covers reports whether a provider-confirmed amount settles the order total.
func covers(order *models.Order, paid decimal.Decimal) bool {
	return order != nil && money.Covers(paid, order.Total)
}

// Adapter verifies one provider's callback against that provider's own API.
// Verify never reports Paid on an error path, nor for a payment that is not
// tied to cb.Order or does not cover its total.
type Adapter interface {
	Provider() enums.PaymentProvider
	Verify(ctx context.Context, cb Callback) Verdict
}
