package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// TaxLine records the rate and amounts applied to one order line, or to the
// order as a whole when OrderItemID is nil.
type TaxLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID *uuid.UUID      `gorm:"column:order_item_id;type:uuid"`
	Scope       enums.TaxScope  `gorm:"column:scope;not null"`
	Name        string          `gorm:"column:name;not null"`
	Rate        decimal.Decimal `gorm:"column:rate;type:numeric(6,4);not null"`
	BaseAmount  decimal.Decimal `gorm:"column:base_amount;type:numeric(12,2);not null"`
	TaxAmount   decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (t *TaxLine) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
