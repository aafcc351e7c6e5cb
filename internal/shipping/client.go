package shipping

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

	"github.com/dmoreira/storefront-backend/pkg/config"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

const responseBodyReadLimit int64 = 1 << 20

var errShippingBaseURLRequired = errors.New("shipping base url is required")

// Client calls the external carrier-rate HTTP API. It satisfies RateProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
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

// NewClient builds the carrier-rate client from the shipping configuration.
func NewClient(cfg config.ShippingConfig, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errShippingBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type rateRequest struct {
	Address types.Address     `json:"address"`
	Items   []rateRequestItem `json:"items"`
}

type rateRequestItem struct {
	SKU   string `json:"sku"`
	Title string `json:"title"`
	Qty   int    `json:"qty"`
}

type rateResponse struct {
	Rates []Rate `json:"rates"`
}

// GetRates fetches carrier quotes for the cart contents shipped to address.
func (c *Client) GetRates(ctx context.Context, cart *models.Cart, address types.Address) ([]Rate, error) {
	payload := rateRequest{
		Address: address,
		Items:   make([]rateRequestItem, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		payload.Items = append(payload.Items, rateRequestItem{
			SKU:   item.SKUSnapshot,
			Title: item.TitleSnapshot,
			Qty:   item.Qty,
		})
	}

	var decoded rateResponse
	if err := c.post(ctx, "/rates", payload, &decoded); err != nil {
		return nil, err
	}
	return decoded.Rates, nil
}

// AcceptOffer accepts a previously quoted offer and returns the provider's
// shipment record, or nil when the provider reports nothing for the offer.
func (c *Client) AcceptOffer(ctx context.Context, offerID string) (*OfferResult, error) {
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id is required")
	}

	var decoded OfferResult
	if err := c.post(ctx, "/offers/"+offerID+"/accept", struct{}{}, &decoded); err != nil {
		return nil, err
	}
	if decoded.TransactionID == "" {
		return nil, nil
	}
	return &decoded, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode shipping request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build shipping request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call shipping provider")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read shipping response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("shipping provider returned status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shipping response")
	}
	return nil
}
