package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/money"
)

const stripeCurrency = "usd"

// StripeSessions is the subset of the Stripe checkout session API in use.
type StripeSessions interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

type sdkSessions struct{}

// NewStripeSessions returns the SDK-backed session API. pkg/stripe must have
// initialized the key first.
func NewStripeSessions() StripeSessions {
	return sdkSessions{}
}

func (sdkSessions) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}

func (sdkSessions) Get(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	return session.Get(id, params)
}

// StripeAdapter verifies hosted checkout redirects (provider A). Only the
// session's own payment_status is trusted. The session must be one opened for
// the order, carry its reference and charge at least its total.
type StripeAdapter struct {
	sessions StripeSessions
}

func NewStripeAdapter(sessions StripeSessions) *StripeAdapter {
	return &StripeAdapter{sessions: sessions}
}

func (a *StripeAdapter) Provider() enums.PaymentProvider {
	return enums.PaymentProviderStripe
}

func (a *StripeAdapter) Verify(ctx context.Context, cb Callback) Verdict {
	sessionID := strings.TrimSpace(cb.Param("session_id"))
	if sessionID == "" {
		return Failed(ReasonMissingParameter)
	}
	if cb.Order == nil || !cb.Order.HasSession(enums.PaymentProviderStripe, sessionID) {
		return Failed(ReasonBindingMismatch)
	}
	sess, err := a.sessions.Get(ctx, sessionID)
	if err != nil || sess == nil {
		return Failed(ReasonProviderUnavailable)
	}
	if sess.ClientReferenceID != cb.Order.OrderRef {
		return Failed(ReasonBindingMismatch)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return Failed(ReasonNotCompleted)
	}
	if !covers(cb.Order, money.FromMinorUnits(sess.AmountTotal)) {
		return Failed(ReasonAmountMismatch)
	}
	reference := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		reference = sess.PaymentIntent.ID
	}
	return Paid(reference)
}

// StripeURLs are the redirect targets handed to Stripe.
type StripeURLs struct {
	SuccessURL string
	CancelURL  string
}

// CreateSession opens a hosted checkout session that charges the order total as
// a single line.
func (a *StripeAdapter) CreateSession(ctx context.Context, order *models.Order, urls StripeURLs) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(urls.SuccessURL),
		CancelURL:         stripe.String(urls.CancelURL),
		ClientReferenceID: stripe.String(order.OrderRef),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(stripeCurrency),
				UnitAmount: stripe.Int64(money.MinorUnits(order.Total)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String("Order " + order.OrderRef),
					Description: stripe.String(sessionDescription(order)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	if order.Address.Email != "" {
		params.CustomerEmail = stripe.String(order.Address.Email)
	}
	sess, err := a.sessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return sess, nil
}

// sessionDescription lists the item titles shown on the hosted page.
func sessionDescription(order *models.Order) string {
	titles := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		titles = append(titles, fmt.Sprintf("%s x%d", item.ProductTitle, item.Qty))
	}
	if len(titles) == 0 {
		return order.OrderRef
	}
	return strings.Join(titles, ", ")
}

// StripeCallbackURLs builds the success and cancel targets for an order.
func StripeCallbackURLs(publicBaseURL, storefrontURL, orderRef string) StripeURLs {
	ref := url.PathEscape(orderRef)
	return StripeURLs{
		SuccessURL: fmt.Sprintf("%s/api/v1/payments/stripe/callback/%s?session_id={CHECKOUT_SESSION_ID}", strings.TrimRight(publicBaseURL, "/"), ref),
		CancelURL:  RedirectURL(storefrontURL, orderRef, OutcomeFailed),
	}
}
