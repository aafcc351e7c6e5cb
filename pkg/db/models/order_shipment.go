package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/dmoreira/storefront-backend/pkg/db/types"
	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// OrderShipment captures the carrier rate selected at checkout. The payload is
// the provider's raw quote, kept opaque and replayed later when requesting a
// label or accepting a carrier offer.
type OrderShipment struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	Provider        string               `gorm:"column:provider;not null"`
	ServiceCode     string               `gorm:"column:service_code;not null"`
	ServiceName     string               `gorm:"column:service_name;not null"`
	ShippingTotal   decimal.Decimal      `gorm:"column:shipping_total;type:numeric(12,2);not null"`
	ShipmentStatus  enums.ShipmentStatus `gorm:"column:shipment_status;not null;default:'pending'"`
	TrackingNumber  *string              `gorm:"column:tracking_number"`
	ShipmentPayload dbtypes.JSONBlob     `gorm:"column:shipment_payload;type:jsonb"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *OrderShipment) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
