package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/money"
)

type cartView struct {
	ID        uuid.UUID       `json:"id"`
	SessionID string          `json:"session_id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	Status    string          `json:"status"`
	Currency  string          `json:"currency"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
	Items     []cartItemView  `json:"items"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type cartItemView struct {
	ID            uuid.UUID        `json:"id"`
	ProductID     uuid.UUID        `json:"product_id"`
	Qty           int              `json:"qty"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	UnitSalePrice *decimal.Decimal `json:"unit_sale_price,omitempty"`
	Title         string           `json:"title"`
	SKU           string           `json:"sku"`
	LineSubtotal  decimal.Decimal  `json:"line_subtotal"`
}

func newCartView(record *models.Cart) cartView {
	view := cartView{
		ID:        record.ID,
		SessionID: record.SessionID,
		UserID:    record.UserID,
		Status:    string(record.Status),
		Currency:  record.Currency,
		Subtotal:  money.Zero(),
		Items:     make([]cartItemView, 0, len(record.Items)),
		UpdatedAt: record.UpdatedAt,
	}

	for _, item := range record.Items {
		lineSubtotal := money.Line(item.EffectiveUnitPrice(), item.Qty)
		itemView := cartItemView{
			ID:           item.ID,
			ProductID:    item.ProductID,
			Qty:          item.Qty,
			UnitPrice:    item.UnitPriceSnapshot,
			Title:        item.TitleSnapshot,
			SKU:          item.SKUSnapshot,
			LineSubtotal: lineSubtotal,
		}
		if item.UnitSalePriceSnapshot.Valid {
			sale := item.UnitSalePriceSnapshot.Decimal
			itemView.UnitSalePrice = &sale
		}
		view.Items = append(view.Items, itemView)
		view.Subtotal = view.Subtotal.Add(lineSubtotal)
		view.ItemCount += item.Qty
	}

	return view
}
