package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the canonical catalog listing. Stock is nullable: a nil value
// means inventory is not tracked for the product and checkout never clamps it.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SKU         string              `gorm:"column:sku;not null;uniqueIndex"`
	Title       string              `gorm:"column:title;not null"`
	Description *string             `gorm:"column:description"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	SalePrice   decimal.NullDecimal `gorm:"column:sale_price;type:numeric(12,2)"`
	IsActive    bool                `gorm:"column:is_active;not null;default:true"`
	Stock       *int                `gorm:"column:stock"`
	Categories  []Category          `gorm:"many2many:product_categories"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TracksStock reports whether the product participates in inventory counting.
func (p *Product) TracksStock() bool {
	return p != nil && p.Stock != nil
}

// EffectivePrice returns the sale price when present and positive, otherwise
// the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid && p.SalePrice.Decimal.IsPositive() {
		return p.SalePrice.Decimal
	}
	return p.Price
}
