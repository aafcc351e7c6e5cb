package checkout

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/internal/orders"
	"github.com/dmoreira/storefront-backend/internal/pricing"
	"github.com/dmoreira/storefront-backend/internal/products"
	"github.com/dmoreira/storefront-backend/internal/shipping"
	"github.com/dmoreira/storefront-backend/pkg/config"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Product{}, &models.Category{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{}, &models.OrderAddress{},
		&models.OrderShipment{}, &models.Payment{}, &models.TaxLine{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

type gormTxRunner struct {
	conn *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.conn.WithContext(ctx).Transaction(fn)
}

type stubResolver struct {
	cart *models.Cart
}

func (s stubResolver) Resolve(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	return s.cart, nil
}

type stubShippingState struct {
	address  *types.Address
	rate     *shipping.Rate
	total    decimal.Decimal
	totalErr error
	cleared  int
}

func (s *stubShippingState) StoredAddress(ctx context.Context, sessionID string) (*types.Address, error) {
	return s.address, nil
}

func (s *stubShippingState) SelectedRate(ctx context.Context, sessionID string) (*shipping.Rate, error) {
	return s.rate, nil
}

func (s *stubShippingState) SelectedShippingTotal(ctx context.Context, sessionID string, cartSubtotal decimal.Decimal) (decimal.Decimal, error) {
	if s.totalErr != nil {
		return decimal.Zero, s.totalErr
	}
	return s.total, nil
}

func (s *stubShippingState) ClearSession(ctx context.Context, sessionID string) error {
	s.cleared++
	return nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func intPtr(v int) *int { return &v }

func mustCreateProduct(t *testing.T, conn *gorm.DB, price string, stock *int) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:      fmt.Sprintf("SKU-%s", uuid.NewString()),
		Title:    "Checkout Widget",
		Price:    dec(t, price),
		IsActive: true,
		Stock:    stock,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func mustCreateCartWith(t *testing.T, conn *gorm.DB, product *models.Product, qty int) *models.Cart {
	t.Helper()
	cart := &models.Cart{SessionID: uuid.NewString(), Status: enums.CartStatusActive, Currency: "USD"}
	if err := conn.Create(cart).Error; err != nil {
		t.Fatalf("create cart: %v", err)
	}
	item := &models.CartItem{
		CartID:            cart.ID,
		ProductID:         product.ID,
		Qty:               qty,
		UnitPriceSnapshot: product.Price,
		TitleSnapshot:     product.Title,
		SKUSnapshot:       product.SKU,
		StockSnapshot:     product.Stock,
	}
	if err := conn.Create(item).Error; err != nil {
		t.Fatalf("create cart item: %v", err)
	}
	cart.Items = []models.CartItem{*item}
	return cart
}

func completeAddress() *types.Address {
	return &types.Address{
		FullName:   "Ada Buyer",
		Line1:      "1 Main St",
		City:       "Lisbon",
		PostalCode: "1000-001",
		Country:    "PT",
	}
}

func standardRate() *shipping.Rate {
	return &shipping.Rate{
		Provider:    "carrierhub",
		ServiceCode: "std",
		ServiceName: "Standard",
		Amount:      decimal.NewFromInt(20),
		RawPayload:  []byte(`{"offer_id":"off_123"}`),
	}
}

func newTestService(t *testing.T, conn *gorm.DB, cart *models.Cart, state *stubShippingState) Service {
	t.Helper()
	engine := pricing.NewEngine(config.StoreConfig{TaxMode: "exclusive", DefaultTaxRate: dec(t, "0.20")})
	svc, err := NewService(
		stubResolver{cart: cart},
		state,
		products.NewRepository(conn),
		orders.NewRepository(conn),
		engine,
		gormTxRunner{conn: conn},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestConfirmCreatesFullOrderGraph(t *testing.T) {
	conn := openTestDB(t)
	product := mustCreateProduct(t, conn, "100", intPtr(10))
	cart := mustCreateCartWith(t, conn, product, 2)
	state := &stubShippingState{address: completeAddress(), rate: standardRate(), total: decimal.NewFromInt(20)}
	svc := newTestService(t, conn, cart, state)

	order, err := svc.Confirm(context.Background(), types.Identity{SessionID: cart.SessionID})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if order.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("status = %s, want pending_payment", order.Status)
	}
	if !order.Subtotal.Equal(dec(t, "200")) {
		t.Fatalf("subtotal = %s, want 200", order.Subtotal)
	}
	if !order.TaxTotal.Equal(dec(t, "40")) {
		t.Fatalf("tax total = %s, want 40", order.TaxTotal)
	}
	if !order.GrandTotal.Equal(dec(t, "260")) {
		t.Fatalf("grand total = %s, want 260", order.GrandTotal)
	}

	if len(order.Items) != 1 {
		t.Fatalf("expected 1 order item, got %d", len(order.Items))
	}
	item := order.Items[0]
	if !item.LineTotal.Equal(dec(t, "240")) {
		t.Fatalf("line total = %s, want 240", item.LineTotal)
	}
	if len(item.TaxLines) != 1 {
		t.Fatalf("expected 1 tax line, got %d", len(item.TaxLines))
	}
	if !item.TaxLines[0].Rate.Equal(dec(t, "0.20")) {
		t.Fatalf("tax rate = %s, want 0.20", item.TaxLines[0].Rate)
	}

	if len(order.Addresses) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(order.Addresses))
	}
	kinds := map[enums.AddressType]bool{}
	for _, addr := range order.Addresses {
		kinds[addr.Type] = true
		if addr.FullName != "Ada Buyer" {
			t.Fatalf("address full name = %s", addr.FullName)
		}
	}
	if !kinds[enums.AddressTypeShipping] || !kinds[enums.AddressTypeBilling] {
		t.Fatal("expected both shipping and billing addresses")
	}

	if order.Shipment == nil {
		t.Fatal("expected shipment row")
	}
	if order.Shipment.ServiceCode != "std" {
		t.Fatalf("service code = %s, want std", order.Shipment.ServiceCode)
	}
	if !order.Shipment.ShipmentPayload.Contains("off_123") {
		t.Fatal("expected raw offer payload to be preserved")
	}

	// Stock is untouched: decrement happens on payment success only.
	var reloaded models.Product
	if err := conn.Where("id = ?", product.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.Stock == nil || *reloaded.Stock != 10 {
		t.Fatalf("stock = %v, want 10", reloaded.Stock)
	}

	if state.cleared == 0 {
		t.Fatal("expected checkout session cache to be cleared")
	}
}

func TestConfirmEmptyCartFails(t *testing.T) {
	conn := openTestDB(t)
	cart := &models.Cart{ID: uuid.New(), SessionID: uuid.NewString(), Status: enums.CartStatusActive, Currency: "USD"}
	state := &stubShippingState{address: completeAddress(), rate: standardRate(), total: decimal.NewFromInt(20)}
	svc := newTestService(t, conn, cart, state)

	_, err := svc.Confirm(context.Background(), types.Identity{SessionID: cart.SessionID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfirmMissingAddressNamesField(t *testing.T) {
	conn := openTestDB(t)
	product := mustCreateProduct(t, conn, "100", intPtr(10))
	cart := mustCreateCartWith(t, conn, product, 1)

	address := completeAddress()
	address.City = ""
	state := &stubShippingState{address: address, rate: standardRate(), total: decimal.NewFromInt(20)}
	svc := newTestService(t, conn, cart, state)

	_, err := svc.Confirm(context.Background(), types.Identity{SessionID: cart.SessionID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(typed.Message(), "city") {
		t.Fatalf("expected message to name the missing field, got %q", typed.Message())
	}
}

func TestConfirmWithoutSelectedRateFails(t *testing.T) {
	conn := openTestDB(t)
	product := mustCreateProduct(t, conn, "100", intPtr(10))
	cart := mustCreateCartWith(t, conn, product, 1)
	state := &stubShippingState{address: completeAddress(), rate: nil}
	svc := newTestService(t, conn, cart, state)

	_, err := svc.Confirm(context.Background(), types.Identity{SessionID: cart.SessionID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(typed.Message(), "shipping") {
		t.Fatalf("expected message to name shipping, got %q", typed.Message())
	}
}

func TestConfirmStaleStockRollsBackEverything(t *testing.T) {
	conn := openTestDB(t)
	product := mustCreateProduct(t, conn, "100", intPtr(5))
	cart := mustCreateCartWith(t, conn, product, 2)

	// Stock sold out after the item was added; the cart snapshot is stale.
	if err := conn.Model(product).Update("stock", 0).Error; err != nil {
		t.Fatalf("drain stock: %v", err)
	}

	state := &stubShippingState{address: completeAddress(), rate: standardRate(), total: decimal.NewFromInt(20)}
	svc := newTestService(t, conn, cart, state)

	_, err := svc.Confirm(context.Background(), types.Identity{SessionID: cart.SessionID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(typed.Message(), "stock") {
		t.Fatalf("expected message to name stock, got %q", typed.Message())
	}

	var count int64
	if err := conn.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no order rows, got %d", count)
	}
}

func TestConfirmInactiveProductFails(t *testing.T) {
	conn := openTestDB(t)
	product := mustCreateProduct(t, conn, "100", nil)
	cart := mustCreateCartWith(t, conn, product, 1)

	if err := conn.Model(product).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product: %v", err)
	}

	state := &stubShippingState{address: completeAddress(), rate: standardRate(), total: decimal.NewFromInt(20)}
	svc := newTestService(t, conn, cart, state)

	_, err := svc.Confirm(context.Background(), types.Identity{SessionID: cart.SessionID})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTotalsPreviewsWithoutWriting(t *testing.T) {
	conn := openTestDB(t)
	product := mustCreateProduct(t, conn, "100", intPtr(10))
	cart := mustCreateCartWith(t, conn, product, 2)
	state := &stubShippingState{rate: standardRate(), total: decimal.NewFromInt(20)}
	svc := newTestService(t, conn, cart, state)

	totals, err := svc.Totals(context.Background(), types.Identity{SessionID: cart.SessionID})
	if err != nil {
		t.Fatalf("totals: %v", err)
	}

	if !totals.Subtotal.Equal(dec(t, "200")) {
		t.Fatalf("subtotal = %s, want 200", totals.Subtotal)
	}
	if !totals.TaxTotal.Equal(dec(t, "40")) {
		t.Fatalf("tax total = %s, want 40", totals.TaxTotal)
	}
	if !totals.ShippingTotal.Equal(dec(t, "20")) {
		t.Fatalf("shipping total = %s, want 20", totals.ShippingTotal)
	}
	if !totals.GrandTotal.Equal(dec(t, "260")) {
		t.Fatalf("grand total = %s, want 260", totals.GrandTotal)
	}
	if len(totals.Lines) != 1 || totals.Lines[0].Qty != 2 {
		t.Fatalf("unexpected lines %+v", totals.Lines)
	}

	var orderCount int64
	if err := conn.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("preview wrote %d orders", orderCount)
	}
}

func TestTotalsBeforeRateSelectionPricesShippingAtZero(t *testing.T) {
	conn := openTestDB(t)
	product := mustCreateProduct(t, conn, "50", intPtr(5))
	cart := mustCreateCartWith(t, conn, product, 1)
	state := &stubShippingState{}
	svc := newTestService(t, conn, cart, state)

	totals, err := svc.Totals(context.Background(), types.Identity{SessionID: cart.SessionID})
	if err != nil {
		t.Fatalf("totals: %v", err)
	}

	if !totals.ShippingTotal.IsZero() {
		t.Fatalf("shipping total = %s, want 0", totals.ShippingTotal)
	}
	if !totals.GrandTotal.Equal(dec(t, "60")) {
		t.Fatalf("grand total = %s, want 60", totals.GrandTotal)
	}
}
