package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is the immutable line snapshot written at checkout. ProductID is
// nullable so the snapshot survives a later hard delete of the product.
type OrderItem struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID     *uuid.UUID          `gorm:"column:product_id;type:uuid"`
	Qty           int                 `gorm:"column:qty;not null"`
	UnitPrice     decimal.Decimal     `gorm:"column:unit_price;type:numeric(12,2);not null"`
	UnitSalePrice decimal.NullDecimal `gorm:"column:unit_sale_price;type:numeric(12,2)"`
	LineSubtotal  decimal.Decimal     `gorm:"column:line_subtotal;type:numeric(12,2);not null"`
	LineTaxTotal  decimal.Decimal     `gorm:"column:line_tax_total;type:numeric(12,2);not null"`
	LineTotal     decimal.Decimal     `gorm:"column:line_total;type:numeric(12,2);not null"`
	TitleSnapshot string              `gorm:"column:title_snapshot;not null"`
	SKUSnapshot   string              `gorm:"column:sku_snapshot;not null"`
	TaxLines      []TaxLine           `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (o *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
