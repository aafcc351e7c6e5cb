package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmoreira/storefront-backend/pkg/config"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1 << 20

var errPaymentBaseURLRequired = errors.New("payment base url is required")

// Client calls the external payment provider's HTTP API. It satisfies
// ProviderClient.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secret     string
}

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the payment client from the payment configuration.
func NewClient(cfg config.PaymentConfig, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errPaymentBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		secret:     strings.TrimSpace(cfg.Secret),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type initializeRequest struct {
	ConversationID string          `json:"conversation_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Checkout       CheckoutContext `json:"checkout"`
}

type retrieveRequest struct {
	ConversationID string `json:"conversation_id"`
	Token          string `json:"token"`
}

type providerResponse struct {
	PaymentStatus string `json:"payment_status"`
	TransactionID string `json:"transaction_id"`
}

// Initialize opens a payment conversation for the order's grand total.
func (c *Client) Initialize(ctx context.Context, order *models.Order, conversationID string, checkout CheckoutContext) (*ProviderResult, error) {
	payload := initializeRequest{
		ConversationID: conversationID,
		Amount:         order.GrandTotal,
		Currency:       order.Currency,
		Checkout:       checkout,
	}
	return c.post(ctx, "/payments", payload)
}

// Retrieve fetches the outcome of a payment conversation after a callback.
func (c *Client) Retrieve(ctx context.Context, conversationID, token string) (*ProviderResult, error) {
	payload := retrieveRequest{ConversationID: conversationID, Token: token}
	return c.post(ctx, "/payments/retrieve", payload)
}

func (c *Client) post(ctx context.Context, path string, payload any) (*ProviderResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payment request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payment request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call payment provider")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read payment response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("payment provider returned status %d", resp.StatusCode))
	}

	var decoded providerResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment response")
	}

	status, err := enums.ParsePaymentStatus(decoded.PaymentStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unexpected payment status")
	}

	return &ProviderResult{
		Status:        status,
		TransactionID: decoded.TransactionID,
		Raw:           raw,
	}, nil
}
