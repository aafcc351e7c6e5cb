package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/internal/cart"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderMachine interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkPaidInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type checkoutCache interface {
	ClearSession(ctx context.Context, sessionID string) error
}

// InitializeResult is what the storefront returns to the client after opening
// a payment conversation.
type InitializeResult struct {
	Payment  *models.Payment
	Order    *models.Order
	Provider *ProviderResult
}

// Service correlates provider conversations to Payment rows and drives the
// order state machine from their outcomes.
type Service interface {
	Initialize(ctx context.Context, identity types.Identity, orderID uuid.UUID) (*InitializeResult, error)
	HandleCallback(ctx context.Context, sessionID, token string) (*models.Order, error)
}

type service struct {
	repo     PaymentRepository
	orders   orderMachine
	carts    cart.CartRepository
	provider ProviderClient
	stash    sessionStash
	shipping checkoutCache
	tx       txRunner
	name     string
}

// NewService builds the payment bridge.
func NewService(
	repo PaymentRepository,
	orders orderMachine,
	carts cart.CartRepository,
	provider ProviderClient,
	store sessionStore,
	shippingCache checkoutCache,
	tx txRunner,
	providerName string,
	sessionTTL time.Duration,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order machine required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if shippingCache == nil {
		return nil, fmt.Errorf("checkout cache required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if providerName == "" {
		providerName = "cardgate"
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultStashTTL
	}
	return &service{
		repo:     repo,
		orders:   orders,
		carts:    carts,
		provider: provider,
		stash:    sessionStash{store: store, ttl: sessionTTL},
		shipping: shippingCache,
		tx:       tx,
		name:     providerName,
	}, nil
}

// Initialize opens a provider conversation for a payable order. The created
// Payment row carries a fresh conversation id, and its id is stashed in the
// checkout session as the primary callback correlator.
func (s *service) Initialize(ctx context.Context, identity types.Identity, orderID uuid.UUID) (*InitializeResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case enums.OrderStatusPendingPayment, enums.OrderStatusFailed:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s is not payable", order.Status))
	}

	payment := &models.Payment{
		OrderID:        order.ID,
		Provider:       s.name,
		Status:         enums.PaymentStatusPending,
		Amount:         order.GrandTotal,
		Currency:       order.Currency,
		ConversationID: uuid.NewString(),
	}
	if _, err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}

	result, err := s.provider.Initialize(ctx, order, payment.ConversationID, CheckoutContext{SessionID: identity.SessionID})
	if err != nil {
		// The conversation stays pending; a later callback or retry can
		// still resolve it.
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initialize payment")
	}

	payment.RawResponse = []byte(result.Raw)
	if result.TransactionID != "" {
		transactionID := result.TransactionID
		payment.TransactionID = &transactionID
	}
	if _, err := s.repo.Update(ctx, payment); err != nil {
		return nil, err
	}

	if err := s.stash.put(ctx, identity.SessionID, payment.ID); err != nil {
		return nil, err
	}

	if result.Status != enums.PaymentStatusPending {
		order, err = s.applyResult(ctx, identity.SessionID, payment, result, payment.RawResponse)
		if err != nil {
			return nil, err
		}
	}

	return &InitializeResult{Payment: payment, Order: order, Provider: result}, nil
}

// HandleCallback resolves a provider callback token to a Payment and applies
// the reported outcome. A callback for an already-paid order short-circuits,
// making webhook replays harmless.
func (s *service) HandleCallback(ctx context.Context, sessionID, token string) (*models.Order, error) {
	payment, err := s.correlate(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.Get(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusPaid {
		s.clearSession(ctx, sessionID)
		return order, nil
	}

	// Providers deliver callbacks at least once, sometimes concurrently.
	// Only one delivery per payment may proceed past this point.
	acquired, err := s.stash.lockCallback(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment callback is already being processed")
	}
	defer func() {
		_ = s.stash.unlockCallback(ctx, payment.ID)
	}()

	result, err := s.provider.Retrieve(ctx, payment.ConversationID, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment outcome")
	}

	if result.TransactionID != "" {
		transactionID := result.TransactionID
		payment.TransactionID = &transactionID
	}

	return s.applyResult(ctx, sessionID, payment, result, []byte(result.Raw))
}

// correlate finds the Payment for a callback: the session-stashed payment id
// first, then a stored response embedding the token, then - degraded - the
// newest pending conversation for the provider.
func (s *service) correlate(ctx context.Context, sessionID, token string) (*models.Payment, error) {
	if id, ok, err := s.stash.get(ctx, sessionID); err != nil {
		return nil, err
	} else if ok {
		payment, err := s.repo.GetByID(ctx, id)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if token != "" {
		payment, err := s.repo.FindByResponseToken(ctx, s.name, token)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	payment, err := s.repo.FindNewestPending(ctx, s.name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment found for callback")
		}
		return nil, err
	}
	return payment, nil
}

// applyResult persists the provider outcome and drives the state machine.
// Success flips order, cart, and stock in one transaction; failure flips the
// order only. Both clear the checkout session afterwards.
func (s *service) applyResult(ctx context.Context, sessionID string, payment *models.Payment, result *ProviderResult, raw []byte) (*models.Order, error) {
	var order *models.Order

	switch result.Status {
	case enums.PaymentStatusSuccess:
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			paid, err := s.orders.MarkPaidInTx(ctx, tx, payment.OrderID)
			if err != nil {
				return err
			}

			txCarts := s.carts.WithTx(tx)
			if err := txCarts.UpdateStatus(ctx, paid.CartID, enums.CartStatusConverted); err != nil {
				return err
			}
			if err := txCarts.DeleteItems(ctx, paid.CartID); err != nil {
				return err
			}

			payment.Status = enums.PaymentStatusSuccess
			payment.RawWebhook = raw
			if _, err := s.repo.WithTx(tx).Update(ctx, payment); err != nil {
				return err
			}

			order = paid
			return nil
		})
		if err != nil {
			return nil, err
		}

	case enums.PaymentStatusFailure:
		payment.Status = enums.PaymentStatusFailure
		payment.RawWebhook = raw
		if _, err := s.repo.Update(ctx, payment); err != nil {
			return nil, err
		}
		failed, err := s.orders.MarkFailed(ctx, payment.OrderID)
		if err != nil {
			return nil, err
		}
		order = failed

	default:
		payment.RawWebhook = raw
		if _, err := s.repo.Update(ctx, payment); err != nil {
			return nil, err
		}
		return s.orders.Get(ctx, payment.OrderID)
	}

	s.clearSession(ctx, sessionID)
	return order, nil
}

func (s *service) clearSession(ctx context.Context, sessionID string) {
	// Best effort: stale checkout state cannot outlive a finished payment.
	_ = s.stash.clear(ctx, sessionID)
	_ = s.shipping.ClearSession(ctx, sessionID)
}
