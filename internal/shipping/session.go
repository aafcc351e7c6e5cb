package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmoreira/storefront-backend/pkg/redis"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

// Checkout-session cache fields. Address, rates, and the selected rate live
// and die together: a cart mutation clears all three.
const (
	fieldAddress      = "address"
	fieldRates        = "rates"
	fieldSelectedRate = "selected_rate"
)

// DefaultSessionTTL bounds how long a quoted checkout survives without
// activity when the store config does not set its own TTL.
const DefaultSessionTTL = 30 * time.Minute

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutKey(sessionID, field string) string
}

// SessionCache is the session-scoped store for the checkout shipping state:
// the normalized address, the last-fetched quotes, and the selected rate.
type SessionCache struct {
	store sessionStore
	ttl   time.Duration
}

// NewSessionCache binds the cache to a redis-backed store. A non-positive ttl
// falls back to DefaultSessionTTL.
func NewSessionCache(store sessionStore, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCache{store: store, ttl: ttl}
}

// StoreAddress persists the checkout address for the session.
func (c *SessionCache) StoreAddress(ctx context.Context, sessionID string, address types.Address) error {
	return c.setJSON(ctx, sessionID, fieldAddress, address)
}

// Address returns the stored checkout address, or nil when none was stored.
func (c *SessionCache) Address(ctx context.Context, sessionID string) (*types.Address, error) {
	var address types.Address
	found, err := c.getJSON(ctx, sessionID, fieldAddress, &address)
	if err != nil || !found {
		return nil, err
	}
	return &address, nil
}

// StoreRates caches the last-fetched quote list for the session.
func (c *SessionCache) StoreRates(ctx context.Context, sessionID string, rates []Rate) error {
	return c.setJSON(ctx, sessionID, fieldRates, rates)
}

// Rates returns the cached quote list, or nil when no quotes were fetched.
func (c *SessionCache) Rates(ctx context.Context, sessionID string) ([]Rate, error) {
	var rates []Rate
	found, err := c.getJSON(ctx, sessionID, fieldRates, &rates)
	if err != nil || !found {
		return nil, err
	}
	return rates, nil
}

// StoreSelectedRate caches the rate the shopper picked.
func (c *SessionCache) StoreSelectedRate(ctx context.Context, sessionID string, rate Rate) error {
	return c.setJSON(ctx, sessionID, fieldSelectedRate, rate)
}

// SelectedRate returns the picked rate, or nil when none was selected.
func (c *SessionCache) SelectedRate(ctx context.Context, sessionID string) (*Rate, error) {
	var rate Rate
	found, err := c.getJSON(ctx, sessionID, fieldSelectedRate, &rate)
	if err != nil || !found {
		return nil, err
	}
	return &rate, nil
}

// Clear removes the address, quotes, and selection in one call. Invoked on
// every cart mutation and once checkout or payment finalizes.
func (c *SessionCache) Clear(ctx context.Context, sessionID string) error {
	return c.store.Del(ctx,
		c.store.CheckoutKey(sessionID, fieldAddress),
		c.store.CheckoutKey(sessionID, fieldRates),
		c.store.CheckoutKey(sessionID, fieldSelectedRate),
	)
}

func (c *SessionCache) setJSON(ctx context.Context, sessionID, field string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.store.CheckoutKey(sessionID, field), encoded, c.ttl)
}

func (c *SessionCache) getJSON(ctx context.Context, sessionID, field string, out any) (bool, error) {
	raw, err := c.store.Get(ctx, c.store.CheckoutKey(sessionID, field))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, err
	}
	return true, nil
}
