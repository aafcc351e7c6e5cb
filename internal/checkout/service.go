package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/internal/orders"
	"github.com/dmoreira/storefront-backend/internal/pricing"
	"github.com/dmoreira/storefront-backend/internal/products"
	"github.com/dmoreira/storefront-backend/internal/shipping"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/money"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartResolver interface {
	Resolve(ctx context.Context, identity types.Identity) (*models.Cart, error)
}

type shippingState interface {
	StoredAddress(ctx context.Context, sessionID string) (*types.Address, error)
	SelectedRate(ctx context.Context, sessionID string) (*shipping.Rate, error)
	SelectedShippingTotal(ctx context.Context, sessionID string, cartSubtotal decimal.Decimal) (decimal.Decimal, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// Service materializes an Order graph from the identity's active cart.
type Service interface {
	Totals(ctx context.Context, identity types.Identity) (*pricing.TotalsView, error)
	Confirm(ctx context.Context, identity types.Identity) (*models.Order, error)
}

type service struct {
	carts    cartResolver
	shipping shippingState
	catalog  *products.Repository
	orders   orders.OrderRepository
	engine   *pricing.Engine
	tx       txRunner
}

// NewService builds the checkout orchestrator.
func NewService(
	carts cartResolver,
	shippingState shippingState,
	catalog *products.Repository,
	orderRepo orders.OrderRepository,
	engine *pricing.Engine,
	tx txRunner,
) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart resolver required")
	}
	if shippingState == nil {
		return nil, fmt.Errorf("shipping state required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		carts:    carts,
		shipping: shippingState,
		catalog:  catalog,
		orders:   orderRepo,
		engine:   engine,
		tx:       tx,
	}, nil
}

// Totals prices the active cart without writing anything: a preview of what
// Confirm would charge. Shipping is priced from the selected rate when one
// exists and as zero before selection, so the preview works at any point in
// the checkout flow.
func (s *service) Totals(ctx context.Context, identity types.Identity) (*pricing.TotalsView, error) {
	cart, err := s.carts.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	subtotal := money.Zero()
	for _, item := range cart.Items {
		subtotal = money.Round2(subtotal.Add(money.Line(item.EffectiveUnitPrice(), item.Qty)))
	}

	shippingTotal := money.Zero()
	rate, err := s.shipping.SelectedRate(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if rate != nil {
		shippingTotal, err = s.shipping.SelectedShippingTotal(ctx, identity.SessionID, subtotal)
		if err != nil {
			return nil, err
		}
	}

	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	totals := s.engine.Totals(cart, catalog, shippingTotal)
	return &totals, nil
}

// Confirm validates the cart, address, and shipping selection, then writes
// the Order with its items, addresses, tax lines, and shipment in a single
// transaction. Product availability and stock are re-validated against the
// live catalog, not the cart's snapshots; any failure rolls back everything.
// Stock is not decremented here, only on payment success.
func (s *service) Confirm(ctx context.Context, identity types.Identity) (*models.Order, error) {
	cart, err := s.carts.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	address, err := s.shipping.StoredAddress(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if address == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address field full_name is required")
	}
	if missing := address.MissingField(); missing != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("address field %s is required", missing))
	}

	rate, err := s.shipping.SelectedRate(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping rate not selected")
	}

	subtotal := money.Zero()
	for _, item := range cart.Items {
		subtotal = money.Round2(subtotal.Add(money.Line(item.EffectiveUnitPrice(), item.Qty)))
	}
	shippingTotal, err := s.shipping.SelectedShippingTotal(ctx, identity.SessionID, subtotal)
	if err != nil {
		return nil, err
	}

	var orderID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalog, err := s.revalidateStock(ctx, tx, cart)
		if err != nil {
			return err
		}

		totals := s.engine.Totals(cart, catalog, shippingTotal)
		order := s.buildOrder(cart, identity, *address, *rate, totals)

		if _, err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best effort: the quoted rates are consumed once the order exists.
	_ = s.shipping.ClearSession(ctx, identity.SessionID)

	return s.orders.GetByID(ctx, orderID)
}

// revalidateStock re-fetches every cart product inside the transaction and
// fails the checkout when one went inactive or no longer covers the requested
// quantity.
func (s *service) revalidateStock(ctx context.Context, tx *gorm.DB, cart *models.Cart) (map[uuid.UUID]*models.Product, error) {
	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	catalog, err := s.catalog.WithTx(tx).GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, item := range cart.Items {
		product, ok := catalog[item.ProductID]
		if !ok || !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %s is no longer available", item.SKUSnapshot))
		}
		if product.TracksStock() && *product.Stock < item.Qty {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("insufficient stock for %s: %d requested, %d available",
					item.SKUSnapshot, item.Qty, *product.Stock))
		}
	}
	return catalog, nil
}

// buildOrder assembles the full order graph with pre-generated ids so every
// foreign key is wired before the single insert.
func (s *service) buildOrder(cart *models.Cart, identity types.Identity, address types.Address, rate shipping.Rate, totals pricing.TotalsView) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        identity.UserID,
		CartID:        cart.ID,
		Status:        enums.OrderStatusPendingPayment,
		Currency:      totals.Currency,
		Subtotal:      totals.Subtotal,
		DiscountTotal: totals.DiscountTotal,
		TaxTotal:      totals.TaxTotal,
		ShippingTotal: totals.ShippingTotal,
		GrandTotal:    totals.GrandTotal,
	}

	itemByID := make(map[uuid.UUID]models.CartItem, len(cart.Items))
	for _, item := range cart.Items {
		itemByID[item.ID] = item
	}

	order.Items = make([]models.OrderItem, 0, len(totals.Lines))
	for _, line := range totals.Lines {
		snapshot := itemByID[line.CartItemID]
		productID := line.ProductID

		item := models.OrderItem{
			ID:            uuid.New(),
			OrderID:       order.ID,
			ProductID:     &productID,
			Qty:           line.Qty,
			UnitPrice:     snapshot.UnitPriceSnapshot,
			UnitSalePrice: snapshot.UnitSalePriceSnapshot,
			LineSubtotal:  line.Subtotal,
			LineTaxTotal:  line.TaxTotal,
			LineTotal:     line.Total,
			TitleSnapshot: snapshot.TitleSnapshot,
			SKUSnapshot:   snapshot.SKUSnapshot,
		}
		item.TaxLines = []models.TaxLine{
			{
				ID:          uuid.New(),
				OrderID:     order.ID,
				OrderItemID: &item.ID,
				Scope:       enums.TaxScopeItem,
				Name:        line.Tax.Name,
				Rate:        line.Tax.Rate,
				BaseAmount:  line.TaxBase,
				TaxAmount:   line.TaxTotal,
			},
		}
		order.Items = append(order.Items, item)
	}

	order.Addresses = []models.OrderAddress{
		orderAddress(order.ID, enums.AddressTypeShipping, address),
		orderAddress(order.ID, enums.AddressTypeBilling, address),
	}

	order.Shipment = &models.OrderShipment{
		ID:              uuid.New(),
		OrderID:         order.ID,
		Provider:        rate.Provider,
		ServiceCode:     rate.ServiceCode,
		ServiceName:     rate.ServiceName,
		ShippingTotal:   totals.ShippingTotal,
		ShipmentStatus:  enums.ShipmentStatusPending,
		ShipmentPayload: []byte(rate.RawPayload),
	}

	return order
}

func orderAddress(orderID uuid.UUID, kind enums.AddressType, address types.Address) models.OrderAddress {
	return models.OrderAddress{
		ID:         uuid.New(),
		OrderID:    orderID,
		Type:       kind,
		FullName:   address.FullName,
		Phone:      copyStringPtr(address.Phone),
		Line1:      address.Line1,
		Line2:      copyStringPtr(address.Line2),
		City:       address.City,
		State:      copyStringPtr(address.State),
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}
