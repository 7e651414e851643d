package payments

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

const paypalCompleted = "COMPLETED"

type paypalAmount struct {
	CurrencyCode string          `json:"currency_code"`
	Value        decimal.Decimal `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	CustomID    string       `json:"custom_id"`
	Amount      paypalAmount `json:"amount"`
}

type paypalOrder struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

// PayPalAdapter verifies provider B by fetching the order with a freshly
// minted client-credentials token. Only status COMPLETED counts as paid, and
// the purchase units must reference the order and add up to its total.
type PayPalAdapter struct {
	baseURL string
	oauth   clientcredentials.Config
	client  *ProviderClient
}

func NewPayPalAdapter(cfg config.PayPalConfig, client *ProviderClient) *PayPalAdapter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &PayPalAdapter{
		baseURL: base,
		oauth: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		client: client,
	}
}

func (a *PayPalAdapter) Provider() enums.PaymentProvider {
	return enums.PaymentProviderPayPal
}

func (a *PayPalAdapter) Verify(ctx context.Context, cb Callback) Verdict {
	txID := strings.TrimSpace(cb.Param("transaction_id"))
	if txID == "" {
		return Failed(ReasonMissingParameter)
	}
	if a.oauth.ClientID == "" || a.oauth.ClientSecret == "" {
		return Failed(ReasonProviderUnavailable)
	}

	token, err := a.oauth.Token(context.WithValue(ctx, oauth2.HTTPClient, a.client.HTTP()))
	if err != nil {
		return Failed(ReasonProviderUnavailable)
	}

	var body paypalOrder
	status, err := a.client.GetJSON(ctx, a.baseURL+"/v2/checkout/orders/"+url.PathEscape(txID), token.AccessToken, &body)
	if err != nil {
		return Failed(ReasonProviderUnavailable)
	}
	if status != http.StatusOK {
		return Failed(ReasonProviderRejected)
	}
	if !paypalBoundTo(body, cb.OrderRef) {
		return Failed(ReasonBindingMismatch)
	}
	if body.Status != paypalCompleted {
		return Failed(ReasonNotCompleted)
	}
	if !covers(cb.Order, paypalTotal(body)) {
		return Failed(ReasonAmountMismatch)
	}
	if body.ID != "" {
		return Paid(body.ID)
	}
	return Paid(txID)
}

// paypalBoundTo requires at least one purchase unit referencing orderRef and
// rejects units that reference anything else.
func paypalBoundTo(order paypalOrder, orderRef string) bool {
	bound := false
	for _, unit := range order.PurchaseUnits {
		for _, ref := range []string{unit.ReferenceID, unit.CustomID} {
			if ref == "" || ref == "default" {
				continue
			}
			if ref != orderRef {
				return false
			}
			bound = true
		}
	}
	return bound
}

func paypalTotal(order paypalOrder) decimal.Decimal {
	total := decimal.Zero
	for _, unit := range order.PurchaseUnits {
		total = total.Add(unit.Amount.Value)
	}
	return total
}
