package config

const (
	EnvPrefix = "BAZAAR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "BAZAAR_APP_ENV"
	EnvPort     = "BAZAAR_APP_PORT"
	EnvDBDSN    = "BAZAAR_DB_DSN"
	EnvDBHost   = "BAZAAR_DB_HOST"
	EnvDBUser   = "BAZAAR_DB_USER"
	EnvDBName   = "BAZAAR_DB_NAME"
	EnvRedisURL = "BAZAAR_REDIS_URL"

	EnvJWTSecret = "BAZAAR_JWT_SECRET"
	EnvJWTIssuer = "BAZAAR_JWT_ISSUER"

	EnvTaxRates          = "BAZAAR_TAX_RATES"
	EnvDefaultTaxRate    = "BAZAAR_DEFAULT_TAX_RATE"
	EnvServiceFeePercent = "BAZAAR_SERVICE_FEE_PERCENT"
	EnvServiceFeeFlat    = "BAZAAR_SERVICE_FEE_FLAT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
