package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazaar-backend/api/responses"
	"github.com/angelmondragon/bazaar-backend/internal/payments"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
)

// CallbackRouter verifies a provider callback and commits the payment.
type CallbackRouter interface {
	Handle(ctx context.Context, provider enums.PaymentProvider, cb payments.Callback) payments.Result
}

// ProviderCheckouts opens provider-side payment sessions.
type ProviderCheckouts interface {
	CreateStripeSession(ctx context.Context, orderRef string, customerID uuid.UUID) (*payments.StripeSession, error)
	CreateRazorpayOrder(ctx context.Context, orderRef string, customerID uuid.UUID) (*payments.RazorpayCheckout, error)
}

func CreateStripeSession(svc ProviderCheckouts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, orderRef, err := checkoutTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := svc.CreateStripeSession(r.Context(), orderRef, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sess)
	}
}

func CreateRazorpayOrder(svc ProviderCheckouts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, orderRef, err := checkoutTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.CreateRazorpayOrder(r.Context(), orderRef, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func checkoutTarget(r *http.Request) (uuid.UUID, string, error) {
	customerID, err := resolveUserID(r)
	if err != nil {
		return uuid.Nil, "", err
	}
	orderRef, err := pathParam(r, "order_ref")
	if err != nil {
		return uuid.Nil, "", err
	}
	return customerID, orderRef, nil
}

// PaymentCallback receives the shopper's return from a provider and always
// answers with a 303 to the storefront status page. Verification failures are
// reported through the payment_status query parameter, never as API errors.
func PaymentCallback(router CallbackRouter, provider enums.PaymentProvider, storefrontURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderRef, err := pathParam(r, "order_ref")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := r.ParseForm(); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback form"))
			return
		}

		result := router.Handle(r.Context(), provider, payments.Callback{
			OrderRef: orderRef,
			Query:    r.URL.Query(),
			Form:     r.PostForm,
		})
		if result.OrderRef != "" {
			orderRef = result.OrderRef
		}

		http.Redirect(w, r, payments.RedirectURL(storefrontURL, orderRef, result.Outcome), http.StatusSeeOther)
	}
}
