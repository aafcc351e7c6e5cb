package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
)

// OrderView is the external projection of an order graph, shared by checkout,
// the payment callback, and the admin surface.
type OrderView struct {
	ID            uuid.UUID          `json:"id"`
	CartID        uuid.UUID          `json:"cart_id"`
	UserID        *uuid.UUID         `json:"user_id,omitempty"`
	Status        string             `json:"status"`
	Currency      string             `json:"currency"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	DiscountTotal decimal.Decimal    `json:"discount_total"`
	TaxTotal      decimal.Decimal    `json:"tax_total"`
	ShippingTotal decimal.Decimal    `json:"shipping_total"`
	GrandTotal    decimal.Decimal    `json:"grand_total"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason  *string            `json:"cancel_reason,omitempty"`
	RefundedAt    *time.Time         `json:"refunded_at,omitempty"`
	RefundReason  *string            `json:"refund_reason,omitempty"`
	Items         []OrderItemView    `json:"items"`
	Addresses     []OrderAddressView `json:"addresses,omitempty"`
	Shipment      *ShipmentView      `json:"shipment,omitempty"`
	Payments      []PaymentView      `json:"payments,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

type OrderItemView struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    *uuid.UUID      `json:"product_id,omitempty"`
	Qty          int             `json:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	LineTaxTotal decimal.Decimal `json:"line_tax_total"`
	LineTotal    decimal.Decimal `json:"line_total"`
	Title        string          `json:"title"`
	SKU          string          `json:"sku"`
	TaxLines     []TaxLineView   `json:"tax_lines,omitempty"`
}

type TaxLineView struct {
	Name       string          `json:"name"`
	Rate       decimal.Decimal `json:"rate"`
	BaseAmount decimal.Decimal `json:"base_amount"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
}

type OrderAddressView struct {
	Type       string  `json:"type"`
	FullName   string  `json:"full_name"`
	Phone      *string `json:"phone,omitempty"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

type ShipmentView struct {
	Provider       string          `json:"provider"`
	ServiceCode    string          `json:"service_code"`
	ServiceName    string          `json:"service_name"`
	ShippingTotal  decimal.Decimal `json:"shipping_total"`
	ShipmentStatus string          `json:"shipment_status"`
	TrackingNumber *string         `json:"tracking_number,omitempty"`
}

type PaymentView struct {
	ID             uuid.UUID       `json:"id"`
	Provider       string          `json:"provider"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ConversationID string          `json:"conversation_id"`
	TransactionID  *string         `json:"transaction_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewOrderView projects one order graph.
func NewOrderView(order *models.Order) OrderView {
	view := OrderView{
		ID:            order.ID,
		CartID:        order.CartID,
		UserID:        order.UserID,
		Status:        string(order.Status),
		Currency:      order.Currency,
		Subtotal:      order.Subtotal,
		DiscountTotal: order.DiscountTotal,
		TaxTotal:      order.TaxTotal,
		ShippingTotal: order.ShippingTotal,
		GrandTotal:    order.GrandTotal,
		CancelledAt:   order.CancelledAt,
		CancelReason:  order.CancelReason,
		RefundedAt:    order.RefundedAt,
		RefundReason:  order.RefundReason,
		Items:         make([]OrderItemView, 0, len(order.Items)),
		CreatedAt:     order.CreatedAt,
	}

	for _, item := range order.Items {
		itemView := OrderItemView{
			ID:           item.ID,
			ProductID:    item.ProductID,
			Qty:          item.Qty,
			UnitPrice:    item.UnitPrice,
			LineSubtotal: item.LineSubtotal,
			LineTaxTotal: item.LineTaxTotal,
			LineTotal:    item.LineTotal,
			Title:        item.TitleSnapshot,
			SKU:          item.SKUSnapshot,
		}
		for _, taxLine := range item.TaxLines {
			itemView.TaxLines = append(itemView.TaxLines, TaxLineView{
				Name:       taxLine.Name,
				Rate:       taxLine.Rate,
				BaseAmount: taxLine.BaseAmount,
				TaxAmount:  taxLine.TaxAmount,
			})
		}
		view.Items = append(view.Items, itemView)
	}

	for _, address := range order.Addresses {
		view.Addresses = append(view.Addresses, OrderAddressView{
			Type:       string(address.Type),
			FullName:   address.FullName,
			Phone:      address.Phone,
			Line1:      address.Line1,
			Line2:      address.Line2,
			City:       address.City,
			State:      address.State,
			PostalCode: address.PostalCode,
			Country:    address.Country,
		})
	}

	if order.Shipment != nil {
		view.Shipment = &ShipmentView{
			Provider:       order.Shipment.Provider,
			ServiceCode:    order.Shipment.ServiceCode,
			ServiceName:    order.Shipment.ServiceName,
			ShippingTotal:  order.Shipment.ShippingTotal,
			ShipmentStatus: string(order.Shipment.ShipmentStatus),
			TrackingNumber: order.Shipment.TrackingNumber,
		}
	}

	for _, payment := range order.Payments {
		view.Payments = append(view.Payments, PaymentView{
			ID:             payment.ID,
			Provider:       payment.Provider,
			Status:         string(payment.Status),
			Amount:         payment.Amount,
			Currency:       payment.Currency,
			ConversationID: payment.ConversationID,
			TransactionID:  payment.TransactionID,
			CreatedAt:      payment.CreatedAt,
		})
	}

	return view
}
