package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// AuthorizationRequest is what the gateway needs to charge a customer. The
// engine never sees card data; Token is the gateway's opaque handle.
type AuthorizationRequest struct {
	OrderID    string
	CustomerID string
	Amount     decimal.Decimal
	Currency   string
	Token      string
}

type AuthorizationResult struct {
	Approved  bool
	Reference string
	Reason    string
}

// PaymentGateway authorizes a charge. A declined charge is a normal result,
// not an error; errors are reserved for transport failures.
type PaymentGateway interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (AuthorizationResult, error)
}

// HTTPGateway posts authorization requests to an external processor. The
// API key comes from the credential store at startup.
type HTTPGateway struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPGateway(url, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *HTTPGateway) Authorize(ctx context.Context, req AuthorizationRequest) (AuthorizationResult, error) {
	payload, err := json.Marshal(map[string]string{
		"order_id":    req.OrderID,
		"customer_id": req.CustomerID,
		"amount":      req.Amount.String(),
		"currency":    req.Currency,
		"token":       req.Token,
	})
	if err != nil {
		return AuthorizationResult{}, fmt.Errorf("authorize: error marshalling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return AuthorizationResult{}, fmt.Errorf("authorize: error building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return AuthorizationResult{}, fmt.Errorf("authorize: error calling gateway: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Approved  bool   `json:"approved"`
		Reference string `json:"reference"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return AuthorizationResult{}, fmt.Errorf("authorize: error decoding response: %w", err)
	}
	return AuthorizationResult{Approved: body.Approved, Reference: body.Reference, Reason: body.Reason}, nil
}
