package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// checkoutCache invalidates the session's shipping state whenever cart
// contents change. Clearing is best effort; a failed clear never fails the
// cart mutation itself.
type checkoutCache interface {
	ClearSession(ctx context.Context, sessionID string) error
}

// Service resolves the active cart for an identity and mutates its lines.
type Service interface {
	Resolve(ctx context.Context, identity types.Identity) (*models.Cart, error)
	MergeGuestIntoUser(ctx context.Context, identity types.Identity) (*models.Cart, error)
	AddItem(ctx context.Context, identity types.Identity, productID uuid.UUID, qty int) (*models.Cart, error)
	UpdateItemQty(ctx context.Context, identity types.Identity, productID uuid.UUID, qty int) (*models.Cart, error)
	RemoveItem(ctx context.Context, identity types.Identity, productID uuid.UUID) (*models.Cart, error)
	ClearItems(ctx context.Context, identity types.Identity) (*models.Cart, error)
}

type service struct {
	repo         CartRepository
	tx           txRunner
	products     productLoader
	checkout     checkoutCache
	baseCurrency string
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader, checkout checkoutCache, baseCurrency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if checkout == nil {
		return nil, fmt.Errorf("checkout cache required")
	}
	if baseCurrency == "" {
		baseCurrency = "USD"
	}
	return &service{
		repo:         repo,
		tx:           tx,
		products:     products,
		checkout:     checkout,
		baseCurrency: baseCurrency,
	}, nil
}

// Resolve binds the identity to exactly one active cart, creating it lazily.
// A logged-in user whose cart still carries a pre-login session id gets the
// session rewritten so the cart follows the rotated session.
func (s *service) Resolve(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	if identity.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	cart, err := s.findActive(ctx, s.repo, identity)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if cart != nil {
		if identity.UserID != nil && cart.SessionID != identity.SessionID {
			cart.SessionID = identity.SessionID
			if _, err := s.repo.Update(ctx, cart); err != nil {
				return nil, err
			}
		}
		return cart, nil
	}

	created := &models.Cart{
		UserID:    identity.UserID,
		SessionID: identity.SessionID,
		Status:    enums.CartStatusActive,
		Currency:  s.baseCurrency,
	}
	return s.repo.Create(ctx, created)
}

func (s *service) findActive(ctx context.Context, repo CartRepository, identity types.Identity) (*models.Cart, error) {
	if identity.UserID != nil {
		return repo.FindActiveByUser(ctx, *identity.UserID)
	}
	return repo.FindActiveGuestBySession(ctx, identity.SessionID)
}

// MergeGuestIntoUser folds the guest cart for identity.SessionID into the
// user's active cart after login. With no existing user cart the guest cart
// is simply re-owned. With both, lines merge product by product: inactive
// products are skipped, quantities sum and clamp to current tracked stock,
// and the guest cart is deleted afterwards. The whole merge runs in one
// transaction so a crash cannot duplicate or drop lines.
func (s *service) MergeGuestIntoUser(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	if identity.UserID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required to merge carts")
	}
	if identity.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	var merged *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		guest, err := txRepo.FindActiveGuestBySession(ctx, identity.SessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				guest = nil
			} else {
				return err
			}
		}

		userCart, err := txRepo.FindActiveByUser(ctx, *identity.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				userCart = nil
			} else {
				return err
			}
		}

		if guest == nil {
			merged = userCart
			return nil
		}

		if userCart == nil {
			guest.UserID = identity.UserID
			if _, err := txRepo.Update(ctx, guest); err != nil {
				return err
			}
			merged = guest
			return nil
		}

		existing := make(map[uuid.UUID]int, len(userCart.Items))
		for _, item := range userCart.Items {
			existing[item.ProductID] = item.Qty
		}

		for _, item := range guest.Items {
			product, err := s.products.GetByID(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return err
			}
			if !product.IsActive {
				continue
			}

			qty := item.Qty + existing[item.ProductID]
			if product.TracksStock() && qty > *product.Stock {
				qty = *product.Stock
			}
			if qty <= 0 {
				continue
			}

			line := snapshotItem(userCart.ID, product, qty)
			if err := txRepo.UpsertItem(ctx, &line); err != nil {
				return err
			}
		}

		if err := txRepo.Delete(ctx, guest.ID); err != nil {
			return err
		}

		merged, err = txRepo.GetByID(ctx, userCart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if merged == nil {
		return s.Resolve(ctx, identity)
	}
	s.invalidateShipping(ctx, identity.SessionID)
	return merged, nil
}

// AddItem adds qty units of the product, merging with any existing line and
// refreshing its snapshot.
func (s *service) AddItem(ctx context.Context, identity types.Identity, productID uuid.UUID, qty int) (*models.Cart, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	cart, err := s.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	product, err := s.loadSellableProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	target := qty
	if line := findLine(cart, productID); line != nil {
		target += line.Qty
	}
	if product.TracksStock() && target > *product.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for product")
	}

	item := snapshotItem(cart.ID, product, target)
	if err := s.repo.UpsertItem(ctx, &item); err != nil {
		return nil, err
	}

	s.invalidateShipping(ctx, identity.SessionID)
	return s.repo.GetByID(ctx, cart.ID)
}

// UpdateItemQty sets the line quantity, removing the line when qty <= 0.
func (s *service) UpdateItemQty(ctx context.Context, identity types.Identity, productID uuid.UUID, qty int) (*models.Cart, error) {
	cart, err := s.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if findLine(cart, productID) == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	if qty <= 0 {
		if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
			return nil, err
		}
		s.invalidateShipping(ctx, identity.SessionID)
		return s.repo.GetByID(ctx, cart.ID)
	}

	product, err := s.loadSellableProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.TracksStock() && qty > *product.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for product")
	}

	item := snapshotItem(cart.ID, product, qty)
	if err := s.repo.UpsertItem(ctx, &item); err != nil {
		return nil, err
	}

	s.invalidateShipping(ctx, identity.SessionID)
	return s.repo.GetByID(ctx, cart.ID)
}

// RemoveItem deletes one product line.
func (s *service) RemoveItem(ctx context.Context, identity types.Identity, productID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if findLine(cart, productID) == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
		return nil, err
	}

	s.invalidateShipping(ctx, identity.SessionID)
	return s.repo.GetByID(ctx, cart.ID)
}

// ClearItems empties the cart.
func (s *service) ClearItems(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	cart, err := s.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
		return nil, err
	}

	s.invalidateShipping(ctx, identity.SessionID)
	return s.repo.GetByID(ctx, cart.ID)
}

func (s *service) loadSellableProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	return product, nil
}

func (s *service) invalidateShipping(ctx context.Context, sessionID string) {
	// Best effort: a stale shipping quote is recomputed at checkout anyway.
	_ = s.checkout.ClearSession(ctx, sessionID)
}

func findLine(cart *models.Cart, productID uuid.UUID) *models.CartItem {
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			return &cart.Items[i]
		}
	}
	return nil
}
