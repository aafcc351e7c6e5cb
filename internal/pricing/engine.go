package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmoreira/storefront-backend/pkg/config"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/money"
)

// DefaultTaxName labels tax lines computed from the store-wide rate.
const DefaultTaxName = "Tax"

// Engine derives deterministic totals from cart-item snapshots. It holds the
// store-wide tax configuration and never touches the database: callers supply
// the category rates alongside the cart.
type Engine struct {
	mode        config.TaxMode
	defaultRate decimal.Decimal
}

// NewEngine builds a pricing engine from the store configuration.
func NewEngine(store config.StoreConfig) *Engine {
	return &Engine{
		mode:        store.Mode(),
		defaultRate: store.DefaultTaxRate,
	}
}

// Mode reports the configured tax mode.
func (e *Engine) Mode() config.TaxMode {
	return e.mode
}

// TaxRule is the resolved rate and display name applied to one line.
type TaxRule struct {
	Name string
	Rate decimal.Decimal
}

// LineView is the priced view of one cart line.
type LineView struct {
	CartItemID uuid.UUID
	ProductID  uuid.UUID
	Qty        int
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
	TaxBase    decimal.Decimal
	TaxTotal   decimal.Decimal
	Total      decimal.Decimal
	Tax        TaxRule
}

// TotalsView aggregates the priced lines with shipping into order-level
// totals. In inclusive mode Subtotal is gross and already contains TaxTotal,
// so GrandTotal = Subtotal + ShippingTotal; in exclusive mode tax is added on
// top.
type TotalsView struct {
	Currency      string
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	GrandTotal    decimal.Decimal
	Lines         []LineView
}

// ResolveRule picks the tax rule for a product: the highest category-specific
// override, or the store default when no category carries one. A nil product
// (deleted since the item was added) falls back to the default as well.
func (e *Engine) ResolveRule(product *models.Product) TaxRule {
	rule := TaxRule{Name: DefaultTaxName, Rate: e.defaultRate}
	if product == nil {
		return rule
	}
	found := false
	for _, cat := range product.Categories {
		if !cat.TaxRate.Valid {
			continue
		}
		if !found || cat.TaxRate.Decimal.GreaterThan(rule.Rate) {
			rule.Rate = cat.TaxRate.Decimal
			rule.Name = DefaultTaxName
			if cat.TaxName != nil && *cat.TaxName != "" {
				rule.Name = *cat.TaxName
			}
			found = true
		}
	}
	return rule
}

// PriceLine computes one line's totals from its snapshot and tax rule,
// rounding after every step.
func (e *Engine) PriceLine(item models.CartItem, rule TaxRule) LineView {
	unit := item.EffectiveUnitPrice()
	subtotal := money.Line(unit, item.Qty)

	line := LineView{
		CartItemID: item.ID,
		ProductID:  item.ProductID,
		Qty:        item.Qty,
		UnitPrice:  unit,
		Subtotal:   subtotal,
		Tax:        rule,
	}

	if e.mode == config.TaxModeInclusive {
		net := money.NetFromGross(subtotal, rule.Rate)
		line.TaxBase = net
		line.TaxTotal = money.Round2(subtotal.Sub(net))
		line.Total = subtotal
		return line
	}

	line.TaxBase = subtotal
	line.TaxTotal = money.TaxOnBase(subtotal, rule.Rate)
	line.Total = money.Round2(subtotal.Add(line.TaxTotal))
	return line
}

// Totals prices every cart line and folds in the shipping total. The products
// map supplies category tax overrides; items whose product is absent from the
// map are taxed at the store default.
func (e *Engine) Totals(cart *models.Cart, catalog map[uuid.UUID]*models.Product, shippingTotal decimal.Decimal) TotalsView {
	view := TotalsView{
		Currency:      cart.Currency,
		Subtotal:      money.Zero(),
		DiscountTotal: money.Zero(),
		TaxTotal:      money.Zero(),
		ShippingTotal: money.Round2(shippingTotal),
		Lines:         make([]LineView, 0, len(cart.Items)),
	}

	for _, item := range cart.Items {
		rule := e.ResolveRule(catalog[item.ProductID])
		line := e.PriceLine(item, rule)
		view.Lines = append(view.Lines, line)
		view.Subtotal = money.Round2(view.Subtotal.Add(line.Subtotal))
		view.TaxTotal = money.Round2(view.TaxTotal.Add(line.TaxTotal))
	}

	if e.mode == config.TaxModeInclusive {
		view.GrandTotal = money.Round2(view.Subtotal.Add(view.ShippingTotal))
	} else {
		view.GrandTotal = money.Round2(view.Subtotal.Add(view.TaxTotal).Add(view.ShippingTotal))
	}
	return view
}
