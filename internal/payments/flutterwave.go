package payments

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

type flutterwaveVerify struct {
	Status string `json:"status"`
	Data   struct {
		Status string          `json:"status"`
		TxRef  string          `json:"tx_ref"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"data"`
}

// FlutterwaveAdapter verifies provider E by transaction id. It requires HTTP
// 200 plus a successful provider status, a tx_ref naming the order and an
// amount covering its total.
type FlutterwaveAdapter struct {
	secret  string
	baseURL string
	client  *ProviderClient
}

func NewFlutterwaveAdapter(cfg config.FlutterwaveConfig, client *ProviderClient) *FlutterwaveAdapter {
	return &FlutterwaveAdapter{secret: cfg.SecretKey, baseURL: strings.TrimRight(cfg.BaseURL, "/"), client: client}
}

func (a *FlutterwaveAdapter) Provider() enums.PaymentProvider {
	return enums.PaymentProviderFlutterwave
}

func (a *FlutterwaveAdapter) Verify(ctx context.Context, cb Callback) Verdict {
	txID := strings.TrimSpace(cb.Param("transaction_id"))
	if txID == "" {
		return Failed(ReasonMissingParameter)
	}
	if a.secret == "" {
		return Failed(ReasonProviderUnavailable)
	}
	var body flutterwaveVerify
	status, err := a.client.GetJSON(ctx, a.baseURL+"/v3/charges/verify_by_id/"+url.PathEscape(txID), a.secret, &body)
	if err != nil {
		return Failed(ReasonProviderUnavailable)
	}
	if status != http.StatusOK || body.Status != "success" {
		return Failed(ReasonProviderRejected)
	}
	if cb.Order == nil || body.Data.TxRef != cb.Order.OrderRef {
		return Failed(ReasonBindingMismatch)
	}
	if body.Data.Status != "successful" {
		return Failed(ReasonNotCompleted)
	}
	if !covers(cb.Order, body.Data.Amount) {
		return Failed(ReasonAmountMismatch)
	}
	return Paid(txID)
}
