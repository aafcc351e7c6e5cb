package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// OrderAddress is one of the two postal rows (shipping, billing) written per
// order from the single checkout-time address input.
type OrderAddress struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Type       enums.AddressType `gorm:"column:type;not null"`
	FullName   string            `gorm:"column:full_name;not null"`
	Phone      *string           `gorm:"column:phone"`
	Line1      string            `gorm:"column:line1;not null"`
	Line2      *string           `gorm:"column:line2"`
	City       string            `gorm:"column:city;not null"`
	State      *string           `gorm:"column:state"`
	PostalCode string            `gorm:"column:postal_code;not null"`
	Country    string            `gorm:"column:country;not null"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (o *OrderAddress) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
