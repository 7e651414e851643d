package money

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/config"
)

// TaxFunc computes tax owed for an amount shipped to country. Must be pure.
type TaxFunc func(country string, amount decimal.Decimal) decimal.Decimal

// FeeFunc computes the platform service fee for an amount. Must be pure.
type FeeFunc func(amount decimal.Decimal) decimal.Decimal

// Pricing bundles the externally supplied tax and service-fee functions.
type Pricing struct {
	Tax        TaxFunc
	ServiceFee FeeFunc
}

// RateTable builds a TaxFunc from per-country rates with a fallback rate.
func RateTable(rates map[string]decimal.Decimal, fallback decimal.Decimal) TaxFunc {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for country, rate := range rates {
		normalized[strings.ToUpper(strings.TrimSpace(country))] = rate
	}
	return func(country string, amount decimal.Decimal) decimal.Decimal {
		rate, ok := normalized[strings.ToUpper(strings.TrimSpace(country))]
		if !ok {
			rate = fallback
		}
		return Round(amount.Mul(rate))
	}
}

// PercentPlusFlat builds a FeeFunc charging percent of the amount plus a flat fee.
func PercentPlusFlat(percent, flat decimal.Decimal) FeeFunc {
	return func(amount decimal.Decimal) decimal.Decimal {
		if amount.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero
		}
		return Round(amount.Mul(percent).Div(hundred).Add(flat))
	}
}

// PricingFromConfig wires the configured rate table and fee schedule.
func PricingFromConfig(cfg config.PricingConfig) (Pricing, error) {
	rates, err := cfg.CountryRates()
	if err != nil {
		return Pricing{}, err
	}
	fallback, err := decimal.NewFromString(strings.TrimSpace(cfg.DefaultTaxRate))
	if err != nil {
		return Pricing{}, err
	}
	percent, err := decimal.NewFromString(strings.TrimSpace(cfg.ServiceFeePercent))
	if err != nil {
		return Pricing{}, err
	}
	flat, err := decimal.NewFromString(strings.TrimSpace(cfg.ServiceFeeFlat))
	if err != nil {
		return Pricing{}, err
	}
	return Pricing{
		Tax:        RateTable(rates, fallback),
		ServiceFee: PercentPlusFlat(percent, flat),
	}, nil
}
