package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// Order is the durable result of checkout. It is created once by the checkout
// orchestrator, mutated only through the order state machine, and never
// deleted.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID        *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	CartID        uuid.UUID         `gorm:"column:cart_id;type:uuid;not null;index"`
	Status        enums.OrderStatus `gorm:"column:status;not null;default:'pending_payment'"`
	Currency      string            `gorm:"column:currency;not null"`
	Subtotal      decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountTotal decimal.Decimal   `gorm:"column:discount_total;type:numeric(12,2);not null"`
	TaxTotal      decimal.Decimal   `gorm:"column:tax_total;type:numeric(12,2);not null"`
	ShippingTotal decimal.Decimal   `gorm:"column:shipping_total;type:numeric(12,2);not null"`
	GrandTotal    decimal.Decimal   `gorm:"column:grand_total;type:numeric(12,2);not null"`
	CancelledAt   *time.Time        `gorm:"column:cancelled_at"`
	CancelReason  *string           `gorm:"column:cancel_reason"`
	RefundedAt    *time.Time        `gorm:"column:refunded_at"`
	RefundReason  *string           `gorm:"column:refund_reason"`
	Items         []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Addresses     []OrderAddress    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment      *OrderShipment    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments      []Payment         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
