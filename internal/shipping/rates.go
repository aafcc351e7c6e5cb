package shipping

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

// Rate is one carrier quote returned by the rate provider. RawPayload is the
// provider's original quote body, kept opaque and persisted with the order so
// a label can be requested later.
type Rate struct {
	Provider    string          `json:"provider"`
	ServiceCode string          `json:"service_code"`
	ServiceName string          `json:"service_name"`
	Amount      decimal.Decimal `json:"amount"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`
}

// OfferResult is the provider's answer to accepting a quoted offer.
type OfferResult struct {
	TransactionID  string               `json:"transaction_id"`
	ShipmentStatus enums.ShipmentStatus `json:"shipment_status"`
	TrackingNumber *string              `json:"tracking_number,omitempty"`
	Raw            json.RawMessage      `json:"raw,omitempty"`
}

// RateProvider is the external carrier collaborator. Implementations are
// opaque: the storefront never inspects provider payloads beyond the fields
// declared on Rate and OfferResult.
type RateProvider interface {
	GetRates(ctx context.Context, cart *models.Cart, address types.Address) ([]Rate, error)
	AcceptOffer(ctx context.Context, offerID string) (*OfferResult, error)
}
