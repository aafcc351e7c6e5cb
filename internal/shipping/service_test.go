package shipping

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmoreira/storefront-backend/pkg/config"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/redis"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) CheckoutKey(sessionID, field string) string {
	return "sf:checkout:" + sessionID + ":" + field
}

type stubProvider struct {
	rates []Rate
	err   error
}

func (s stubProvider) GetRates(ctx context.Context, cart *models.Cart, address types.Address) ([]Rate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

func (s stubProvider) AcceptOffer(ctx context.Context, offerID string) (*OfferResult, error) {
	return nil, nil
}

func testAddress() types.Address {
	return types.Address{
		FullName:   "Ada Buyer",
		Line1:      "1 Main St",
		City:       "Lisbon",
		PostalCode: "1000-001",
		Country:    "PT",
	}
}

func testCart() *models.Cart {
	return &models.Cart{
		ID:       uuid.New(),
		Currency: "USD",
		Items: []models.CartItem{
			{ID: uuid.New(), ProductID: uuid.New(), Qty: 1, SKUSnapshot: "SKU-1", TitleSnapshot: "Widget"},
		},
	}
}

func newTestService(t *testing.T, provider RateProvider, store config.StoreConfig) Service {
	t.Helper()
	svc, err := NewService(NewSessionCache(newMemoryStore(), 0), provider, store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestGetRatesCachesQuotes(t *testing.T) {
	t.Parallel()

	quoted := []Rate{
		{Provider: "carrierhub", ServiceCode: "std", ServiceName: "Standard", Amount: decimal.NewFromInt(20)},
		{Provider: "carrierhub", ServiceCode: "exp", ServiceName: "Express", Amount: decimal.NewFromInt(45)},
	}
	svc := newTestService(t, stubProvider{rates: quoted}, config.StoreConfig{})
	session := uuid.NewString()

	rates, err := svc.GetRates(context.Background(), session, testCart(), testAddress())
	if err != nil {
		t.Fatalf("get rates: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(rates))
	}

	addr, err := svc.StoredAddress(context.Background(), session)
	if err != nil {
		t.Fatalf("stored address: %v", err)
	}
	if addr == nil || addr.City != "Lisbon" {
		t.Fatalf("expected stored address, got %+v", addr)
	}
}

func TestGetRatesRejectsIncompleteAddress(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, stubProvider{rates: []Rate{{ServiceCode: "std"}}}, config.StoreConfig{})

	address := testAddress()
	address.City = ""
	_, err := svc.GetRates(context.Background(), uuid.NewString(), testCart(), address)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSelectRateValidatesAgainstCachedQuotes(t *testing.T) {
	t.Parallel()

	quoted := []Rate{{Provider: "carrierhub", ServiceCode: "std", ServiceName: "Standard", Amount: decimal.NewFromInt(20)}}
	svc := newTestService(t, stubProvider{rates: quoted}, config.StoreConfig{})
	session := uuid.NewString()

	if _, err := svc.SelectRate(context.Background(), session, "std"); err == nil {
		t.Fatal("expected error selecting before any quotes were fetched")
	}

	if _, err := svc.GetRates(context.Background(), session, testCart(), testAddress()); err != nil {
		t.Fatalf("get rates: %v", err)
	}

	if _, err := svc.SelectRate(context.Background(), session, "overnight"); err == nil {
		t.Fatal("expected error for unknown service code")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	selected, err := svc.SelectRate(context.Background(), session, "std")
	if err != nil {
		t.Fatalf("select rate: %v", err)
	}
	if selected.ServiceCode != "std" {
		t.Fatalf("selected %q, want std", selected.ServiceCode)
	}
}

func TestSelectedShippingTotal(t *testing.T) {
	t.Parallel()

	quoted := []Rate{{Provider: "carrierhub", ServiceCode: "std", ServiceName: "Standard", Amount: decimal.NewFromInt(20)}}
	svc := newTestService(t, stubProvider{rates: quoted}, config.StoreConfig{
		FreeShippingEnabled:   true,
		FreeShippingThreshold: decimal.NewFromInt(100),
	})
	session := uuid.NewString()

	// Threshold met: free shipping without any selection.
	total, err := svc.SelectedShippingTotal(context.Background(), session, decimal.NewFromInt(150))
	if err != nil {
		t.Fatalf("selected shipping total: %v", err)
	}
	if !total.IsZero() {
		t.Fatalf("total = %s, want 0", total)
	}

	// Below threshold without a selection: validation error.
	if _, err := svc.SelectedShippingTotal(context.Background(), session, decimal.NewFromInt(50)); err == nil {
		t.Fatal("expected error when no rate selected")
	}

	if _, err := svc.GetRates(context.Background(), session, testCart(), testAddress()); err != nil {
		t.Fatalf("get rates: %v", err)
	}
	if _, err := svc.SelectRate(context.Background(), session, "std"); err != nil {
		t.Fatalf("select rate: %v", err)
	}

	total, err = svc.SelectedShippingTotal(context.Background(), session, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("selected shipping total: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("total = %s, want 20", total)
	}
}

func TestClearSessionDropsAllKeys(t *testing.T) {
	t.Parallel()

	quoted := []Rate{{Provider: "carrierhub", ServiceCode: "std", ServiceName: "Standard", Amount: decimal.NewFromInt(20)}}
	svc := newTestService(t, stubProvider{rates: quoted}, config.StoreConfig{})
	session := uuid.NewString()

	if _, err := svc.GetRates(context.Background(), session, testCart(), testAddress()); err != nil {
		t.Fatalf("get rates: %v", err)
	}
	if _, err := svc.SelectRate(context.Background(), session, "std"); err != nil {
		t.Fatalf("select rate: %v", err)
	}

	if err := svc.ClearSession(context.Background(), session); err != nil {
		t.Fatalf("clear session: %v", err)
	}

	addr, err := svc.StoredAddress(context.Background(), session)
	if err != nil {
		t.Fatalf("stored address: %v", err)
	}
	if addr != nil {
		t.Fatalf("expected address cleared, got %+v", addr)
	}
	selected, err := svc.SelectedRate(context.Background(), session)
	if err != nil {
		t.Fatalf("selected rate: %v", err)
	}
	if selected != nil {
		t.Fatalf("expected selection cleared, got %+v", selected)
	}
}

func TestSessionCacheUsesConfiguredTTL(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	cache := NewSessionCache(store, 2*time.Hour)
	session := uuid.NewString()

	if err := cache.StoreAddress(context.Background(), session, testAddress()); err != nil {
		t.Fatalf("store address: %v", err)
	}
	key := store.CheckoutKey(session, fieldAddress)
	if got := store.ttls[key]; got != 2*time.Hour {
		t.Fatalf("ttl = %s, want 2h", got)
	}

	fallback := NewSessionCache(store, 0)
	if err := fallback.StoreAddress(context.Background(), session, testAddress()); err != nil {
		t.Fatalf("store address: %v", err)
	}
	if got := store.ttls[key]; got != DefaultSessionTTL {
		t.Fatalf("ttl = %s, want default %s", got, DefaultSessionTTL)
	}
}
