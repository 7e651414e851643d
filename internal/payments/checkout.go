package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/money"
)

type checkoutOrders interface {
	ForCheckout(ctx context.Context, orderRef string, customerID uuid.UUID) (*models.Order, error)
	BindProviderSession(ctx context.Context, orderID uuid.UUID, provider enums.PaymentProvider, sessionID string) error
}

// Checkouts opens provider-side payment sessions for unpaid orders and binds
// the provider id to the order so callbacks can be matched. Each provider keeps
// its own bindings.
type Checkouts struct {
	orders        checkoutOrders
	stripe        *StripeAdapter
	razorpay      *RazorpayAdapter
	publicBaseURL string
	storefrontURL string
	logg          *logger.Logger
}

// CheckoutsParams wires Checkouts.
type CheckoutsParams struct {
	Orders        checkoutOrders
	Stripe        *StripeAdapter
	Razorpay      *RazorpayAdapter
	PublicBaseURL string
	StorefrontURL string
	Logger        *logger.Logger
}

func NewCheckouts(params CheckoutsParams) (*Checkouts, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Checkouts{
		orders:        params.Orders,
		stripe:        params.Stripe,
		razorpay:      params.Razorpay,
		publicBaseURL: params.PublicBaseURL,
		storefrontURL: params.StorefrontURL,
		logg:          logg,
	}, nil
}

// StripeSession is returned to the storefront to redirect the shopper.
type StripeSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

func (c *Checkouts) CreateStripeSession(ctx context.Context, orderRef string, customerID uuid.UUID) (*StripeSession, error) {
	if c.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe is not configured")
	}
	order, err := c.orders.ForCheckout(ctx, orderRef, customerID)
	if err != nil {
		return nil, err
	}
	sess, err := c.stripe.CreateSession(ctx, order, StripeCallbackURLs(c.publicBaseURL, c.storefrontURL, order.OrderRef))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe session")
	}
	if err := c.orders.BindProviderSession(ctx, order.ID, enums.PaymentProviderStripe, sess.ID); err != nil {
		return nil, err
	}
	c.logg.Info(c.logg.WithOrderRef(ctx, order.OrderRef), "payment.session_created")
	return &StripeSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// RazorpayCheckout is what the storefront widget needs to collect payment.
type RazorpayCheckout struct {
	OrderID  string `json:"razorpay_order_id"`
	KeyID    string `json:"key_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (c *Checkouts) CreateRazorpayOrder(ctx context.Context, orderRef string, customerID uuid.UUID) (*RazorpayCheckout, error) {
	if c.razorpay == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay is not configured")
	}
	order, err := c.orders.ForCheckout(ctx, orderRef, customerID)
	if err != nil {
		return nil, err
	}
	created, err := c.razorpay.CreateOrder(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create razorpay order")
	}
	if err := c.orders.BindProviderSession(ctx, order.ID, enums.PaymentProviderRazorpay, created.ID); err != nil {
		return nil, err
	}
	c.logg.Info(c.logg.WithOrderRef(ctx, order.OrderRef), "payment.session_created")
	amount := created.Amount
	if amount == 0 {
		amount = money.MinorUnits(order.Total)
	}
	return &RazorpayCheckout{OrderID: created.ID, KeyID: c.razorpay.KeyID(), Amount: amount, Currency: created.Currency}, nil
}
