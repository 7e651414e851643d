package enums

import (
	"fmt"
	"strings"
)

// PaymentProvider tags the processor that verified a payment. It doubles as
// the order's payment_method once the payment commits.
type PaymentProvider string

const (
	PaymentProviderStripe      PaymentProvider = "stripe"
	PaymentProviderPayPal      PaymentProvider = "paypal"
	PaymentProviderRazorpay    PaymentProvider = "razorpay"
	PaymentProviderPaystack    PaymentProvider = "paystack"
	PaymentProviderFlutterwave PaymentProvider = "flutterwave"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderStripe,
	PaymentProviderPayPal,
	PaymentProviderRazorpay,
	PaymentProviderPaystack,
	PaymentProviderFlutterwave,
}

func (p PaymentProvider) String() string {
	return string(p)
}

// IsValid reports whether the provider tag is supported.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider accepts tags case-insensitively.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentProviders {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
