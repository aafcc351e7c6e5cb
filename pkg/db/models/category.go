package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups products and optionally overrides the store-wide tax rate.
// When several categories on one product carry overrides, pricing picks the
// highest rate.
type Category struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name      string              `gorm:"column:name;not null"`
	Slug      string              `gorm:"column:slug;not null;uniqueIndex"`
	TaxRate   decimal.NullDecimal `gorm:"column:tax_rate;type:numeric(6,4)"`
	TaxName   *string             `gorm:"column:tax_name"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
