package cart

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/internal/products"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:cart_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Product{}, &models.Category{},
		&models.Cart{}, &models.CartItem{},
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

type recordingCache struct {
	cleared []string
}

func (c *recordingCache) ClearSession(ctx context.Context, sessionID string) error {
	c.cleared = append(c.cleared, sessionID)
	return nil
}

func newTestService(t *testing.T, conn *gorm.DB) (Service, *recordingCache) {
	t.Helper()
	cache := &recordingCache{}
	svc, err := NewService(
		NewRepository(conn),
		gormTxRunner{conn: conn},
		products.NewRepository(conn),
		cache,
		"USD",
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, cache
}

func mustCreateProduct(t *testing.T, conn *gorm.DB, price string, stock *int) *models.Product {
	t.Helper()
	amount, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("parse price: %v", err)
	}
	product := &models.Product{
		SKU:      fmt.Sprintf("SKU-%s", uuid.NewString()),
		Title:    "Cart Widget",
		Price:    amount,
		IsActive: true,
		Stock:    stock,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func intPtr(v int) *int { return &v }

func TestResolveCreatesCartLazily(t *testing.T) {
	conn := openTestDB(t)
	svc, _ := newTestService(t, conn)
	identity := types.Identity{SessionID: uuid.NewString()}

	cart, err := svc.Resolve(context.Background(), identity)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cart.Status != enums.CartStatusActive {
		t.Fatalf("status = %s, want active", cart.Status)
	}
	if cart.Currency != "USD" {
		t.Fatalf("currency = %s, want USD", cart.Currency)
	}

	again, err := svc.Resolve(context.Background(), identity)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again.ID != cart.ID {
		t.Fatalf("expected the same cart on re-resolve, got %s and %s", cart.ID, again.ID)
	}
}

func TestResolveRewritesRotatedSession(t *testing.T) {
	conn := openTestDB(t)
	svc, _ := newTestService(t, conn)
	userID := uuid.New()

	first, err := svc.Resolve(context.Background(), types.Identity{SessionID: "before-login", UserID: &userID})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	second, err := svc.Resolve(context.Background(), types.Identity{SessionID: "after-login", UserID: &userID})
	if err != nil {
		t.Fatalf("resolve with rotated session: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same cart across session rotation")
	}
	if second.SessionID != "after-login" {
		t.Fatalf("session id = %s, want after-login", second.SessionID)
	}
}

func TestAddItemSnapshotsAndMergesLines(t *testing.T) {
	conn := openTestDB(t)
	svc, cache := newTestService(t, conn)
	product := mustCreateProduct(t, conn, "19.99", intPtr(10))
	identity := types.Identity{SessionID: uuid.NewString()}

	cart, err := svc.AddItem(context.Background(), identity, product.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(cart.Items))
	}
	line := cart.Items[0]
	if line.Qty != 2 {
		t.Fatalf("qty = %d, want 2", line.Qty)
	}
	if !line.UnitPriceSnapshot.Equal(product.Price) {
		t.Fatalf("price snapshot = %s, want %s", line.UnitPriceSnapshot, product.Price)
	}
	if line.SKUSnapshot != product.SKU {
		t.Fatalf("sku snapshot = %s, want %s", line.SKUSnapshot, product.SKU)
	}

	// Adding the same product again merges into the existing line.
	cart, err = svc.AddItem(context.Background(), identity, product.ID, 3)
	if err != nil {
		t.Fatalf("add item again: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Qty != 5 {
		t.Fatalf("expected merged line qty 5, got %+v", cart.Items)
	}

	if len(cache.cleared) == 0 {
		t.Fatal("expected shipping cache invalidation on cart mutation")
	}
}

func TestAddItemRejectsInsufficientStock(t *testing.T) {
	conn := openTestDB(t)
	svc, _ := newTestService(t, conn)
	product := mustCreateProduct(t, conn, "10", intPtr(2))
	identity := types.Identity{SessionID: uuid.NewString()}

	_, err := svc.AddItem(context.Background(), identity, product.ID, 3)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	conn := openTestDB(t)
	svc, _ := newTestService(t, conn)
	product := mustCreateProduct(t, conn, "10", nil)
	if err := conn.Model(product).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product: %v", err)
	}
	identity := types.Identity{SessionID: uuid.NewString()}

	_, err := svc.AddItem(context.Background(), identity, product.ID, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateItemQtyZeroRemovesLine(t *testing.T) {
	conn := openTestDB(t)
	svc, _ := newTestService(t, conn)
	product := mustCreateProduct(t, conn, "10", nil)
	identity := types.Identity{SessionID: uuid.NewString()}

	if _, err := svc.AddItem(context.Background(), identity, product.ID, 2); err != nil {
		t.Fatalf("add item: %v", err)
	}

	cart, err := svc.UpdateItemQty(context.Background(), identity, product.ID, 0)
	if err != nil {
		t.Fatalf("update qty: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(cart.Items))
	}

	_, err = svc.UpdateItemQty(context.Background(), identity, product.ID, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found for removed line, got %v", err)
	}
}

func TestClearItemsEmptiesCart(t *testing.T) {
	conn := openTestDB(t)
	svc, _ := newTestService(t, conn)
	first := mustCreateProduct(t, conn, "10", nil)
	second := mustCreateProduct(t, conn, "20", nil)
	identity := types.Identity{SessionID: uuid.NewString()}

	if _, err := svc.AddItem(context.Background(), identity, first.ID, 1); err != nil {
		t.Fatalf("add first: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), identity, second.ID, 2); err != nil {
		t.Fatalf("add second: %v", err)
	}

	cart, err := svc.ClearItems(context.Background(), identity)
	if err != nil {
		t.Fatalf("clear items: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(cart.Items))
	}
}

func TestMergeGuestIntoUserClampsToStock(t *testing.T) {
	conn := openTestDB(t)
	svc, _ := newTestService(t, conn)
	product := mustCreateProduct(t, conn, "10", intPtr(5))

	userID := uuid.New()
	guestSession := uuid.NewString()

	// User cart holds 2 units from an earlier session.
	if _, err := svc.AddItem(context.Background(), types.Identity{SessionID: "user-session", UserID: &userID}, product.ID, 2); err != nil {
		t.Fatalf("seed user cart: %v", err)
	}

	// Guest adds 3 units, then logs in.
	guestCart, err := svc.AddItem(context.Background(), types.Identity{SessionID: guestSession}, product.ID, 3)
	if err != nil {
		t.Fatalf("seed guest cart: %v", err)
	}

	merged, err := svc.MergeGuestIntoUser(context.Background(), types.Identity{SessionID: guestSession, UserID: &userID})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if len(merged.Items) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(merged.Items))
	}
	if merged.Items[0].Qty != 5 {
		t.Fatalf("merged qty = %d, want 5 (clamped at stock)", merged.Items[0].Qty)
	}

	var count int64
	if err := conn.Model(&models.Cart{}).Where("id = ?", guestCart.ID).Count(&count).Error; err != nil {
		t.Fatalf("count guest carts: %v", err)
	}
	if count != 0 {
		t.Fatal("expected guest cart to be deleted after merge")
	}
}

func TestMergeGuestIntoUserReOwnsGuestCart(t *testing.T) {
	conn := openTestDB(t)
	svc, _ := newTestService(t, conn)
	product := mustCreateProduct(t, conn, "10", nil)

	userID := uuid.New()
	guestSession := uuid.NewString()

	guestCart, err := svc.AddItem(context.Background(), types.Identity{SessionID: guestSession}, product.ID, 1)
	if err != nil {
		t.Fatalf("seed guest cart: %v", err)
	}

	merged, err := svc.MergeGuestIntoUser(context.Background(), types.Identity{SessionID: guestSession, UserID: &userID})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.ID != guestCart.ID {
		t.Fatalf("expected guest cart re-owned, got different cart")
	}
	if merged.UserID == nil || *merged.UserID != userID {
		t.Fatalf("expected cart owned by user %s, got %v", userID, merged.UserID)
	}
}

func TestMergeSkipsInactiveProducts(t *testing.T) {
	conn := openTestDB(t)
	svc, _ := newTestService(t, conn)
	active := mustCreateProduct(t, conn, "10", nil)
	retired := mustCreateProduct(t, conn, "15", nil)

	userID := uuid.New()
	guestSession := uuid.NewString()

	if _, err := svc.AddItem(context.Background(), types.Identity{SessionID: guestSession}, active.ID, 1); err != nil {
		t.Fatalf("add active: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), types.Identity{SessionID: guestSession}, retired.ID, 1); err != nil {
		t.Fatalf("add retired: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), types.Identity{SessionID: "user-session", UserID: &userID}, active.ID, 1); err != nil {
		t.Fatalf("seed user cart: %v", err)
	}

	// Product retired between add and login.
	if err := conn.Model(retired).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product: %v", err)
	}

	merged, err := svc.MergeGuestIntoUser(context.Background(), types.Identity{SessionID: guestSession, UserID: &userID})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if len(merged.Items) != 1 {
		t.Fatalf("expected only the active product line, got %d lines", len(merged.Items))
	}
	if merged.Items[0].ProductID != active.ID {
		t.Fatalf("expected line for active product, got %s", merged.Items[0].ProductID)
	}
	if merged.Items[0].Qty != 2 {
		t.Fatalf("merged qty = %d, want 2", merged.Items[0].Qty)
	}
}
