package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmoreira/storefront-backend/pkg/redis"
)

const fieldPaymentID = "payment_id"

// defaultStashTTL applies when the store config carries no checkout session
// TTL of its own.
const defaultStashTTL = 30 * time.Minute

// callbackGuardTTL bounds how long a crashed callback handler can hold the
// per-payment processing guard.
const callbackGuardTTL = time.Minute

const callbackGuardPrefix = "sf:payment:callback:"

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutKey(sessionID, field string) string
}

// sessionStash remembers which payment a checkout session initialized, the
// strongest correlation signal when the provider calls back.
type sessionStash struct {
	store sessionStore
	ttl   time.Duration
}

func (s sessionStash) put(ctx context.Context, sessionID string, paymentID uuid.UUID) error {
	return s.store.Set(ctx, s.store.CheckoutKey(sessionID, fieldPaymentID), paymentID.String(), s.ttl)
}

func (s sessionStash) get(ctx context.Context, sessionID string) (uuid.UUID, bool, error) {
	raw, err := s.store.Get(ctx, s.store.CheckoutKey(sessionID, fieldPaymentID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

func (s sessionStash) clear(ctx context.Context, sessionID string) error {
	return s.store.Del(ctx, s.store.CheckoutKey(sessionID, fieldPaymentID))
}

// lockCallback takes the per-payment processing guard, serializing concurrent
// deliveries of the same provider callback.
func (s sessionStash) lockCallback(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	return s.store.SetNX(ctx, callbackGuardPrefix+paymentID.String(), "1", callbackGuardTTL)
}

func (s sessionStash) unlockCallback(ctx context.Context, paymentID uuid.UUID) error {
	return s.store.Del(ctx, callbackGuardPrefix+paymentID.String())
}
