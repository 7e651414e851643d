package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Payments     PaymentsConfig
	Stripe       StripeConfig
	PayPal       PayPalConfig
	Razorpay     RazorpayConfig
	Paystack     PaystackConfig
	Flutterwave  FlutterwaveConfig
	Sendgrid     SendgridConfig
	Outbox       OutboxConfig
	Dispatch     DispatchConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string `envconfig:"BAZAAR_APP_ENV" required:"true"`
	Port          string `envconfig:"BAZAAR_APP_PORT" required:"true"`
	LogLevel      string `envconfig:"BAZAAR_LOG_LEVEL" default:"info"`
	LogWarnStack  bool   `envconfig:"BAZAAR_LOG_WARN_STACK" default:"false"`
	PublicBaseURL string `envconfig:"BAZAAR_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	StorefrontURL string `envconfig:"BAZAAR_STOREFRONT_URL" default:"http://localhost:3000"`
	CORSOrigins   string `envconfig:"BAZAAR_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	parts := strings.Split(a.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"BAZAAR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BAZAAR_DB_DSN"`
	Driver string `envconfig:"BAZAAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BAZAAR_DB_HOST"`
	LegacyPort     int    `envconfig:"BAZAAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAZAAR_DB_USER"`
	LegacyPassword string `envconfig:"BAZAAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAZAAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAZAAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAZAAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZAAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZAAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZAAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZAAR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BAZAAR_REDIS_ADDR"`
	Password     string        `envconfig:"BAZAAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAZAAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAZAAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZAAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZAAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZAAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZAAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BAZAAR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BAZAAR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BAZAAR_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig throttles the unauthenticated payment callback routes per client IP.
type RateLimitConfig struct {
	CallbackWindow  time.Duration `envconfig:"BAZAAR_CALLBACK_RATE_WINDOW" default:"1m"`
	CallbackIPLimit int           `envconfig:"BAZAAR_CALLBACK_RATE_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BAZAAR_AUTO_MIGRATE" default:"false"`
}

// PricingConfig feeds the tax and service-fee functions.
// TaxRates is a comma separated list of COUNTRY:rate pairs, e.g. "US:0.10,NG:0.075".
type PricingConfig struct {
	TaxRates          map[string]string `envconfig:"BAZAAR_TAX_RATES"`
	DefaultTaxRate    string            `envconfig:"BAZAAR_DEFAULT_TAX_RATE" default:"0"`
	ServiceFeePercent string            `envconfig:"BAZAAR_SERVICE_FEE_PERCENT" default:"0"`
	ServiceFeeFlat    string            `envconfig:"BAZAAR_SERVICE_FEE_FLAT" default:"0"`
}

// CountryRates parses TaxRates into decimals keyed by upper-cased country code.
func (p PricingConfig) CountryRates() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(p.TaxRates))
	for country, raw := range p.TaxRates {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("tax rate for %s: %w", country, err)
		}
		out[strings.ToUpper(strings.TrimSpace(country))] = rate
	}
	return out, nil
}

func (p PricingConfig) validate() error {
	if _, err := p.CountryRates(); err != nil {
		return err
	}
	for name, raw := range map[string]string{
		EnvDefaultTaxRate:    p.DefaultTaxRate,
		EnvServiceFeePercent: p.ServiceFeePercent,
		EnvServiceFeeFlat:    p.ServiceFeeFlat,
	} {
		if _, err := decimal.NewFromString(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

type PaymentsConfig struct {
	VerifyTimeout       time.Duration `envconfig:"BAZAAR_PAYMENTS_VERIFY_TIMEOUT" default:"10s"`
	BreakerMaxFailures  uint32        `envconfig:"BAZAAR_PAYMENTS_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenInterval time.Duration `envconfig:"BAZAAR_PAYMENTS_BREAKER_OPEN_INTERVAL" default:"30s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"BAZAAR_STRIPE_API_KEY"`
	Env    string `envconfig:"BAZAAR_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID     string `envconfig:"BAZAAR_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"BAZAAR_PAYPAL_CLIENT_SECRET"`
	BaseURL      string `envconfig:"BAZAAR_PAYPAL_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"BAZAAR_RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"BAZAAR_RAZORPAY_KEY_SECRET"`
	BaseURL   string `envconfig:"BAZAAR_RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	Currency  string `envconfig:"BAZAAR_RAZORPAY_CURRENCY" default:"INR"`
}

type PaystackConfig struct {
	SecretKey string `envconfig:"BAZAAR_PAYSTACK_SECRET_KEY"`
	BaseURL   string `envconfig:"BAZAAR_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
}

type FlutterwaveConfig struct {
	SecretKey string `envconfig:"BAZAAR_FLUTTERWAVE_SECRET_KEY"`
	BaseURL   string `envconfig:"BAZAAR_FLUTTERWAVE_BASE_URL" default:"https://api.flutterwave.com"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"BAZAAR_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"BAZAAR_SENDGRID_FROM_EMAIL" default:"orders@bazaar.local"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"BAZAAR_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"BAZAAR_OUTBOX_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"BAZAAR_OUTBOX_MAX_ATTEMPTS" default:"10"`
	ClaimLease     time.Duration `envconfig:"BAZAAR_OUTBOX_CLAIM_LEASE" default:"5m"`
}

type DispatchConfig struct {
	RetryAttempts  uint64        `envconfig:"BAZAAR_DISPATCH_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"BAZAAR_DISPATCH_RETRY_BASE_DELAY" default:"200ms"`
}

// MaintenanceConfig drives the cron worker. Retention windows are measured
// from the time the job runs.
type MaintenanceConfig struct {
	Interval              time.Duration `envconfig:"BAZAAR_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"BAZAAR_MAINTENANCE_LOCK_TTL" default:"30m"`
	NotificationRetention time.Duration `envconfig:"BAZAAR_NOTIFICATION_RETENTION" default:"720h"`
	OutboxRetention       time.Duration `envconfig:"BAZAAR_OUTBOX_RETENTION" default:"720h"`
	CartIdleTTL           time.Duration `envconfig:"BAZAAR_CART_IDLE_TTL" default:"336h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
