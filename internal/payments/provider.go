package payments

import (
	"context"
	"encoding/json"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// ProviderResult is the only shape the bridge reads from the payment
// collaborator: a status, the provider's transaction id, and the raw body.
type ProviderResult struct {
	Status        enums.PaymentStatus `json:"payment_status"`
	TransactionID string              `json:"transaction_id"`
	Raw           json.RawMessage     `json:"raw,omitempty"`
}

// CheckoutContext carries the shopper details the provider wants alongside
// the amount.
type CheckoutContext struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email,omitempty"`
	ReturnURL string `json:"return_url,omitempty"`
}

// ProviderClient is the external payment collaborator. ConversationID is the
// idempotency correlator for one payment conversation.
type ProviderClient interface {
	Initialize(ctx context.Context, order *models.Order, conversationID string, checkout CheckoutContext) (*ProviderResult, error)
	Retrieve(ctx context.Context, conversationID, token string) (*ProviderResult, error)
}
