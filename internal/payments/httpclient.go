package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/bazaar-backend/pkg/config"
)

const maxProviderBody = 1 << 20

type providerResponse struct {
	Status int
	Body   []byte
}

// ProviderClient performs provider HTTP calls behind a circuit breaker. An
// open breaker and upstream 5xx responses both surface as errors.
type ProviderClient struct {
	name    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[providerResponse]
}

// NewProviderClient builds a breaker-protected client for one provider.
func NewProviderClient(name string, cfg config.PaymentsConfig, httpClient *http.Client) *ProviderClient {
	if httpClient == nil {
		timeout := cfg.VerifyTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[providerResponse](gobreaker.Settings{
		Name:    name,
		Timeout: cfg.BreakerOpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})
	return &ProviderClient{name: name, http: httpClient, breaker: breaker}
}

// HTTP exposes the underlying client for SDKs that manage their own requests.
func (c *ProviderClient) HTTP() *http.Client {
	return c.http
}

// Do sends req and returns the status and body.
func (c *ProviderClient) Do(req *http.Request) (int, []byte, error) {
	res, err := c.breaker.Execute(func() (providerResponse, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return providerResponse{}, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
		if err != nil {
			return providerResponse{}, fmt.Errorf("%s: read body: %w", c.name, err)
		}
		out := providerResponse{Status: resp.StatusCode, Body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return out, fmt.Errorf("%s: upstream status %d", c.name, resp.StatusCode)
		}
		return out, nil
	})
	return res.Status, res.Body, err
}

// GetJSON issues an authenticated GET and decodes a JSON body into out.
func (c *ProviderClient) GetJSON(ctx context.Context, url, bearer string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	status, body, err := c.Do(req)
	if err != nil {
		return status, err
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return status, fmt.Errorf("%s: decode response: %w", c.name, err)
		}
	}
	return status, nil
}

// State reports the breaker state for health logging.
func (c *ProviderClient) State() string {
	return c.breaker.State().String()
}
