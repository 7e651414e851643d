package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bazaar-backend/api/controllers"
	"github.com/angelmondragon/bazaar-backend/api/routes"
	"github.com/angelmondragon/bazaar-backend/internal/address"
	"github.com/angelmondragon/bazaar-backend/internal/cart"
	"github.com/angelmondragon/bazaar-backend/internal/checkout"
	"github.com/angelmondragon/bazaar-backend/internal/coupons"
	"github.com/angelmondragon/bazaar-backend/internal/fulfillment"
	"github.com/angelmondragon/bazaar-backend/internal/notifications"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/internal/payments"
	"github.com/angelmondragon/bazaar-backend/internal/products"
	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/instance"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
	"github.com/angelmondragon/bazaar-backend/pkg/migrate"
	"github.com/angelmondragon/bazaar-backend/pkg/money"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/bazaar-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing api resources", err)
		}
	}()

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Dependencies, error) {
	conn := dbClient.DB()
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	productsRepo := products.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	addressRepo := address.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)

	cartService, err := cart.NewService(cartRepo, dbClient, productsRepo, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	addressService, err := address.NewService(addressRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}
	notificationService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, err
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:          ordersRepo,
		Tx:            dbClient,
		CartLines:     cartRepo,
		Notifications: notificationService,
		Outbox:        outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:       paymentMetrics,
		Logger:        logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	pricing, err := money.PricingFromConfig(cfg.Pricing)
	if err != nil {
		return routes.Dependencies{}, err
	}
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:        dbClient,
		CartLines: cartRepo,
		Orders:    ordersRepo,
		Products:  productsRepo,
		Addresses: addressRepo,
		Pricing:   pricing,
		Logger:    logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	couponService, err := coupons.NewService(coupons.NewRepository(conn), ordersRepo, dbClient, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	fulfillmentService, err := fulfillment.NewService(fulfillment.NewRepository(conn), dbClient, notificationService, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	adapters, stripeAdapter, razorpayAdapter := buildAdapters(cfg, logg)
	callbacks, err := payments.NewRouter(payments.RouterParams{
		Adapters: adapters,
		Orders:   ordersService,
		Timeout:  cfg.Payments.VerifyTimeout,
		Metrics:  paymentMetrics,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	checkouts, err := payments.NewCheckouts(payments.CheckoutsParams{
		Orders:        ordersService,
		Stripe:        stripeAdapter,
		Razorpay:      razorpayAdapter,
		PublicBaseURL: cfg.App.PublicBaseURL,
		StorefrontURL: cfg.App.StorefrontURL,
		Logger:        logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Config: cfg,
		Logger: logg,
		Ready: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Idempotency:   redisClient,
		RateLimiter:   redisClient,
		Metrics:       promhttp.Handler(),
		Cart:          cartService,
		Checkout:      checkoutService,
		Orders:        ordersService,
		Coupons:       couponService,
		Checkouts:     checkouts,
		Callbacks:     callbacks,
		Fulfillment:   fulfillmentService,
		Notifications: notificationService,
		Addresses:     addressService,
	}, nil
}

// buildAdapters registers a verifier for every provider with credentials.
// Callbacks for unconfigured providers resolve as unsupported.
func buildAdapters(cfg *config.Config, logg *logger.Logger) ([]payments.Adapter, *payments.StripeAdapter, *payments.RazorpayAdapter) {
	ctx := context.Background()
	var adapters []payments.Adapter

	var stripeAdapter *payments.StripeAdapter
	if cfg.Stripe.APIKey != "" {
		if _, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg); err != nil {
			logg.Error(ctx, "stripe disabled", err)
		} else {
			stripeAdapter = payments.NewStripeAdapter(payments.NewStripeSessions())
			adapters = append(adapters, stripeAdapter)
		}
	}

	if cfg.PayPal.ClientID != "" {
		adapters = append(adapters, payments.NewPayPalAdapter(cfg.PayPal, payments.NewProviderClient("paypal", cfg.Payments, nil)))
	}

	var razorpayAdapter *payments.RazorpayAdapter
	if cfg.Razorpay.KeyID != "" {
		razorpayAdapter = payments.NewRazorpayAdapter(cfg.Razorpay, payments.NewProviderClient("razorpay", cfg.Payments, nil))
		adapters = append(adapters, razorpayAdapter)
	}

	if cfg.Paystack.SecretKey != "" {
		adapters = append(adapters, payments.NewPaystackAdapter(cfg.Paystack, payments.NewProviderClient("paystack", cfg.Payments, nil)))
	}
	if cfg.Flutterwave.SecretKey != "" {
		adapters = append(adapters, payments.NewFlutterwaveAdapter(cfg.Flutterwave, payments.NewProviderClient("flutterwave", cfg.Payments, nil)))
	}

	if len(adapters) == 0 {
		logg.Warn(ctx, "no payment providers configured, callbacks resolve as unsupported")
	}
	return adapters, stripeAdapter, razorpayAdapter
}
