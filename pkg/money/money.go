// Package money holds the decimal arithmetic shared by carts, orders and coupons.
// Amounts are rounded to two places at every boundary that persists them.
package money

import "github.com/shopspring/decimal"

const places = 2

var hundred = decimal.NewFromInt(100)

// Round normalizes an amount to currency precision.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(places)
}

// Line computes the totals of qty units at price with per-unit shipping.
func Line(price, shipping decimal.Decimal, qty int) (subTotal, shippingTotal, total decimal.Decimal) {
	q := decimal.NewFromInt(int64(qty))
	subTotal = Round(price.Mul(q))
	shippingTotal = Round(shipping.Mul(q))
	total = subTotal.Add(shippingTotal)
	return subTotal, shippingTotal, total
}

// Sum adds every amount; the empty sum is zero.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// PercentOf returns amount * pct / 100 rounded to currency precision.
func PercentOf(amount decimal.Decimal, pct int) decimal.Decimal {
	if pct <= 0 {
		return decimal.Zero
	}
	return Round(amount.Mul(decimal.NewFromInt(int64(pct))).Div(hundred))
}

// MinorUnits converts an amount into integer minor units (cents, kobo, paise).
func MinorUnits(amount decimal.Decimal) int64 {
	return Round(amount).Mul(hundred).IntPart()
}

// FromMinorUnits converts provider-reported minor units back into an amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}

// Covers reports whether paid settles due, compared at minor-unit precision.
func Covers(paid, due decimal.Decimal) bool {
	return MinorUnits(paid) >= MinorUnits(due)
}

// OrderTotal is the canonical order total formula.
func OrderTotal(subTotal, shippingTotal, tax, serviceFee decimal.Decimal) decimal.Decimal {
	return subTotal.Add(shippingTotal).Add(tax).Add(serviceFee)
}
