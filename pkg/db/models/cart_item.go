package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem carries the price/identity snapshot taken when the line was added
// or its quantity last changed. Totals are always computed from the snapshot,
// never from the live product, so catalog edits cannot drift an open cart.
type CartItem struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CartID                uuid.UUID           `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product"`
	ProductID             uuid.UUID           `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product"`
	Qty                   int                 `gorm:"column:qty;not null"`
	UnitPriceSnapshot     decimal.Decimal     `gorm:"column:unit_price_snapshot;type:numeric(12,2);not null"`
	UnitSalePriceSnapshot decimal.NullDecimal `gorm:"column:unit_sale_price_snapshot;type:numeric(12,2)"`
	TitleSnapshot         string              `gorm:"column:title_snapshot;not null"`
	SKUSnapshot           string              `gorm:"column:sku_snapshot;not null"`
	StockSnapshot         *int                `gorm:"column:stock_snapshot"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// EffectiveUnitPrice returns the snapshot sale price when present and
// positive, otherwise the snapshot list price.
func (c CartItem) EffectiveUnitPrice() decimal.Decimal {
	if c.UnitSalePriceSnapshot.Valid && c.UnitSalePriceSnapshot.Decimal.IsPositive() {
		return c.UnitSalePriceSnapshot.Decimal
	}
	return c.UnitPriceSnapshot
}
