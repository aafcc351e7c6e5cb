package cart

import (
	"github.com/google/uuid"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
)

// snapshotItem builds a cart line from the live product. Every quantity
// mutation goes through here so the stored price/title/sku snapshot is always
// refreshed together with the quantity.
func snapshotItem(cartID uuid.UUID, product *models.Product, qty int) models.CartItem {
	return models.CartItem{
		CartID:                cartID,
		ProductID:             product.ID,
		Qty:                   qty,
		UnitPriceSnapshot:     product.Price,
		UnitSalePriceSnapshot: product.SalePrice,
		TitleSnapshot:         product.Title,
		SKUSnapshot:           product.SKU,
		StockSnapshot:         copyIntPtr(product.Stock),
	}
}

func copyIntPtr(src *int) *int {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}
