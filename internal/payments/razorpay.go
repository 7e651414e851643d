package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/money"
)

// RazorpayAdapter verifies provider C callbacks by recomputing the payment
// signature. The posted order id must be one created for this order; the
// provider order already fixes the amount to the order total.
type RazorpayAdapter struct {
	cfg     config.RazorpayConfig
	baseURL string
	client  *ProviderClient
}

func NewRazorpayAdapter(cfg config.RazorpayConfig, client *ProviderClient) *RazorpayAdapter {
	return &RazorpayAdapter{cfg: cfg, baseURL: strings.TrimRight(cfg.BaseURL, "/"), client: client}
}

func (a *RazorpayAdapter) Provider() enums.PaymentProvider {
	return enums.PaymentProviderRazorpay
}

func (a *RazorpayAdapter) Verify(_ context.Context, cb Callback) Verdict {
	orderID := strings.TrimSpace(cb.Param("razorpay_order_id"))
	paymentID := strings.TrimSpace(cb.Param("razorpay_payment_id"))
	signature := strings.TrimSpace(cb.Param("razorpay_signature"))
	if orderID == "" || paymentID == "" || signature == "" {
		return Failed(ReasonMissingParameter)
	}
	if a.cfg.KeySecret == "" {
		return Failed(ReasonProviderUnavailable)
	}
	if !VerifyRazorpaySignature(a.cfg.KeySecret, orderID, paymentID, signature) {
		return Failed(ReasonSignatureMismatch)
	}
	if cb.Order == nil || !cb.Order.HasSession(enums.PaymentProviderRazorpay, orderID) {
		return Failed(ReasonBindingMismatch)
	}
	return Paid(paymentID)
}

// VerifyRazorpaySignature compares hex(HMAC-SHA256(secret, order_id|payment_id))
// with the supplied signature in constant time.
func VerifyRazorpaySignature(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// RazorpayOrder is the provider order the storefront widget pays against.
type RazorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// CreateOrder registers the order total with Razorpay in minor units.
func (a *RazorpayAdapter) CreateOrder(ctx context.Context, order *models.Order) (*RazorpayOrder, error) {
	payload, err := json.Marshal(map[string]any{
		"amount":          money.MinorUnits(order.Total),
		"currency":        a.cfg.Currency,
		"receipt":         order.OrderRef,
		"payment_capture": 1,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(a.cfg.KeyID, a.cfg.KeySecret)

	status, body, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay: create order: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("razorpay: create order: status %d", status)
	}
	var created RazorpayOrder
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("razorpay: decode order: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("razorpay: order id missing")
	}
	return &created, nil
}

// KeyID is the public key the storefront widget needs.
func (a *RazorpayAdapter) KeyID() string {
	return a.cfg.KeyID
}
