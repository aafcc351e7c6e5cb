package shipping

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dmoreira/storefront-backend/pkg/config"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/money"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

// Service quotes, caches, and resolves shipping for a checkout session.
type Service interface {
	StoreAddress(ctx context.Context, sessionID string, address types.Address) error
	StoredAddress(ctx context.Context, sessionID string) (*types.Address, error)
	GetRates(ctx context.Context, sessionID string, cart *models.Cart, address types.Address) ([]Rate, error)
	SelectRate(ctx context.Context, sessionID, serviceCode string) (*Rate, error)
	SelectedRate(ctx context.Context, sessionID string) (*Rate, error)
	SelectedShippingTotal(ctx context.Context, sessionID string, cartSubtotal decimal.Decimal) (decimal.Decimal, error)
	ClearSession(ctx context.Context, sessionID string) error
}

type service struct {
	cache    *SessionCache
	provider RateProvider
	store    config.StoreConfig
}

// NewService builds the shipping service.
func NewService(cache *SessionCache, provider RateProvider, store config.StoreConfig) (Service, error) {
	if cache == nil {
		return nil, fmt.Errorf("session cache required")
	}
	if provider == nil {
		return nil, fmt.Errorf("rate provider required")
	}
	return &service{cache: cache, provider: provider, store: store}, nil
}

// StoreAddress validates the minimum postal fields and caches the address.
func (s *service) StoreAddress(ctx context.Context, sessionID string, address types.Address) error {
	if missing := address.MissingField(); missing != "" {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("address field %s is required", missing))
	}
	return s.cache.StoreAddress(ctx, sessionID, address)
}

// StoredAddress returns the cached checkout address, or nil.
func (s *service) StoredAddress(ctx context.Context, sessionID string) (*types.Address, error) {
	return s.cache.Address(ctx, sessionID)
}

// GetRates stores the address, fetches quotes from the provider, and caches
// them for later selection. Provider failure surfaces as a dependency error.
func (s *service) GetRates(ctx context.Context, sessionID string, cart *models.Cart, address types.Address) ([]Rate, error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if err := s.StoreAddress(ctx, sessionID, address); err != nil {
		return nil, err
	}

	rates, err := s.provider.GetRates(ctx, cart, address)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "no shipping rates available")
	}
	if len(rates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no shipping rates available")
	}

	if err := s.cache.StoreRates(ctx, sessionID, rates); err != nil {
		return nil, err
	}
	return rates, nil
}

// SelectRate picks one quote by service code. The code must match an entry in
// the last cached quote list; anything else is a stale or unknown selection.
func (s *service) SelectRate(ctx context.Context, sessionID, serviceCode string) (*Rate, error) {
	rates, err := s.cache.Rates(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no shipping rates quoted for this session")
	}

	for _, rate := range rates {
		if rate.ServiceCode == serviceCode {
			if err := s.cache.StoreSelectedRate(ctx, sessionID, rate); err != nil {
				return nil, err
			}
			selected := rate
			return &selected, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping selection")
}

// SelectedRate returns the rate picked for this session, or nil.
func (s *service) SelectedRate(ctx context.Context, sessionID string) (*Rate, error) {
	return s.cache.SelectedRate(ctx, sessionID)
}

// SelectedShippingTotal resolves the amount checkout should charge: zero when
// the free-shipping threshold applies, otherwise the selected rate's amount.
func (s *service) SelectedShippingTotal(ctx context.Context, sessionID string, cartSubtotal decimal.Decimal) (decimal.Decimal, error) {
	if s.store.FreeShippingEnabled && cartSubtotal.GreaterThanOrEqual(s.store.FreeShippingThreshold) {
		return money.Zero(), nil
	}

	selected, err := s.cache.SelectedRate(ctx, sessionID)
	if err != nil {
		return money.Zero(), err
	}
	if selected == nil {
		return money.Zero(), pkgerrors.New(pkgerrors.CodeValidation, "shipping rate not selected")
	}
	return money.Round2(selected.Amount), nil
}

// ClearSession drops the session's address, quotes, and selection.
func (s *service) ClearSession(ctx context.Context, sessionID string) error {
	return s.cache.Clear(ctx, sessionID)
}
