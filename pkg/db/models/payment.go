package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/dmoreira/storefront-backend/pkg/db/types"
	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// Payment records one provider conversation for an order. ConversationID is
// the idempotency correlator sent to the provider; the raw blobs preserve the
// opaque request/response/webhook bodies for audit and token matching.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Provider       string              `gorm:"column:provider;not null"`
	Status         enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency       string              `gorm:"column:currency;not null"`
	ConversationID string              `gorm:"column:conversation_id;not null;index"`
	TransactionID  *string             `gorm:"column:transaction_id"`
	RawRequest     dbtypes.JSONBlob    `gorm:"column:raw_request;type:jsonb"`
	RawResponse    dbtypes.JSONBlob    `gorm:"column:raw_response;type:jsonb"`
	RawWebhook     dbtypes.JSONBlob    `gorm:"column:raw_webhook;type:jsonb"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
