package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bazaar-backend/api/controllers"
	"github.com/angelmondragon/bazaar-backend/api/middleware"
	"github.com/angelmondragon/bazaar-backend/internal/address"
	"github.com/angelmondragon/bazaar-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/bazaar-backend/internal/checkout"
	"github.com/angelmondragon/bazaar-backend/internal/coupons"
	"github.com/angelmondragon/bazaar-backend/internal/fulfillment"
	"github.com/angelmondragon/bazaar-backend/internal/notifications"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/bazaar-backend/pkg/redis"
)

// RateLimiter is the fixed-window counter backing callback throttling.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	Ready         map[string]controllers.Pinger
	Idempotency   pkgredis.IdempotencyStore
	RateLimiter   RateLimiter
	Metrics       http.Handler
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Coupons       coupons.Service
	Checkouts     controllers.ProviderCheckouts
	Callbacks     controllers.CallbackRouter
	Fulfillment   *fulfillment.Service
	Notifications notifications.Service
	Addresses     address.Service
}

var callbackProviders = []enums.PaymentProvider{
	enums.PaymentProviderStripe,
	enums.PaymentProviderPayPal,
	enums.PaymentProviderRazorpay,
	enums.PaymentProviderPaystack,
	enums.PaymentProviderFlutterwave,
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	idempotent := middleware.Idempotency(deps.Idempotency, logg)
	callbackPolicy := middleware.NewRateLimitPolicy("payment_callback", cfg.RateLimit.CallbackWindow, cfg.RateLimit.CallbackIPLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/carts/{cart_id}", func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/", controllers.CartSnapshot(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Put("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Delete("/items/{line_id}", controllers.CartRemoveItem(deps.Cart, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Use(middleware.RateLimit(callbackPolicy, deps.RateLimiter, logg))
			for _, provider := range callbackProviders {
				handler := controllers.PaymentCallback(deps.Callbacks, provider, cfg.App.StorefrontURL, logg)
				pattern := "/" + provider.String() + "/callback/{order_ref}"
				r.Get(pattern, handler)
				r.Post(pattern, handler)
			}
		})

		r.Get("/fulfillment/lookup", controllers.FulfillmentLookup(deps.Fulfillment, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.ListAddresses(deps.Addresses, logg))
				r.Post("/", controllers.CreateAddress(deps.Addresses, logg))
			})

			r.With(idempotent).Post("/checkout", controllers.Checkout(deps.Checkout, logg))

			r.Route("/orders/{order_ref}", func(r chi.Router) {
				r.Get("/", controllers.OrderDetail(deps.Orders, logg))
				r.Get("/payment-status", controllers.OrderPaymentStatus(deps.Orders, logg))
				r.With(idempotent).Post("/coupons", controllers.ApplyCoupon(deps.Coupons, logg))
				r.With(idempotent).Post("/payments/stripe/session", controllers.CreateStripeSession(deps.Checkouts, logg))
				r.With(idempotent).Post("/payments/razorpay/order", controllers.CreateRazorpayOrder(deps.Checkouts, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/seen-all", controllers.MarkAllNotificationsSeen(deps.Notifications, logg))
				r.Post("/{notification_id}/seen", controllers.MarkNotificationSeen(deps.Notifications, logg))
			})

			r.Route("/vendor", func(r chi.Router) {
				r.Use(middleware.RequireVendor(logg))
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", controllers.VendorListOrders(deps.Orders, logg))
					r.Get("/{order_ref}", controllers.VendorOrderDetail(deps.Orders, logg))
					r.Patch("/{order_ref}/status", controllers.VendorUpdateOrderStatus(deps.Orders, logg))
					r.Patch("/{order_ref}/items/{item_ref}", controllers.VendorUpdateItemStatus(deps.Fulfillment, logg))
				})
				r.Route("/coupons", func(r chi.Router) {
					r.Get("/", controllers.VendorListCoupons(deps.Coupons, logg))
					r.With(idempotent).Post("/", controllers.VendorCreateCoupon(deps.Coupons, logg))
					r.Patch("/{coupon_id}", controllers.VendorUpdateCoupon(deps.Coupons, logg))
					r.Delete("/{coupon_id}", controllers.VendorDeleteCoupon(deps.Coupons, logg))
				})
			})
		})
	})

	return r
}
