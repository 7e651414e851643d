package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/money"
)

type paystackVerify struct {
	Status bool `json:"status"`
	Data   struct {
		Status    string          `json:"status"`
		Reference string          `json:"reference"`
		Amount    int64           `json:"amount"`
		Metadata  json.RawMessage `json:"metadata"`
	} `json:"data"`
}

type paystackMetadata struct {
	OrderRef string `json:"order_ref"`
}

// paystackOrderRef extracts metadata.order_ref. Paystack echoes metadata either
// as an object or as a JSON-encoded string.
func paystackOrderRef(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var meta paystackMetadata
	if err := json.Unmarshal(raw, &meta); err == nil {
		return meta.OrderRef
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return ""
	}
	if err := json.Unmarshal([]byte(encoded), &meta); err != nil {
		return ""
	}
	return meta.OrderRef
}

// PaystackAdapter verifies provider D by looking the reference up on the
// transaction-verify endpoint. Only data.status == success counts, and the
// transaction must name the order (as its reference or metadata.order_ref) and
// charge at least its total.
type PaystackAdapter struct {
	secret  string
	baseURL string
	client  *ProviderClient
}

func NewPaystackAdapter(cfg config.PaystackConfig, client *ProviderClient) *PaystackAdapter {
	return &PaystackAdapter{secret: cfg.SecretKey, baseURL: strings.TrimRight(cfg.BaseURL, "/"), client: client}
}

func (a *PaystackAdapter) Provider() enums.PaymentProvider {
	return enums.PaymentProviderPaystack
}

func (a *PaystackAdapter) Verify(ctx context.Context, cb Callback) Verdict {
	reference := strings.TrimSpace(cb.Param("reference"))
	if reference == "" {
		return Failed(ReasonMissingParameter)
	}
	if a.secret == "" {
		return Failed(ReasonProviderUnavailable)
	}
	var body paystackVerify
	status, err := a.client.GetJSON(ctx, a.baseURL+"/transaction/verify/"+url.PathEscape(reference), a.secret, &body)
	if err != nil {
		return Failed(ReasonProviderUnavailable)
	}
	if status != http.StatusOK || !body.Status {
		return Failed(ReasonProviderRejected)
	}
	if body.Data.Status != "success" {
		return Failed(ReasonNotCompleted)
	}
	if cb.Order == nil || (body.Data.Reference != cb.Order.OrderRef && paystackOrderRef(body.Data.Metadata) != cb.Order.OrderRef) {
		return Failed(ReasonBindingMismatch)
	}
	if !covers(cb.Order, money.FromMinorUnits(body.Data.Amount)) {
		return Failed(ReasonAmountMismatch)
	}
	if body.Data.Reference != "" {
		return Paid(body.Data.Reference)
	}
	return Paid(reference)
}
