package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/internal/inventory"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Decrement(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
	Restore(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

// Service drives an order through its status state machine. Every transition
// runs in one transaction with the order row locked, so concurrent calls
// serialize and re-entrant calls observe the already-applied state.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, status *enums.OrderStatus, limit, offset int) ([]models.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkPaidInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error)
	Refund(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error)
}

type service struct {
	repo   OrderRepository
	tx     txRunner
	ledger stockLedger
}

// NewService builds the order state machine service.
func NewService(repo OrderRepository, tx txRunner, ledger stockLedger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	return &service{repo: repo, tx: tx, ledger: ledger}, nil
}

// Get loads one order with its full graph.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

// List returns orders for the admin surface.
func (s *service) List(ctx context.Context, status *enums.OrderStatus, limit, offset int) ([]models.Order, error) {
	return s.repo.List(ctx, status, limit, offset)
}

// MarkPaid moves pending_payment or failed to paid and consumes stock for
// every line under row locks. Calling it on an already-paid order is a no-op.
func (s *service) MarkPaid(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, id, s.applyPaid)
}

// MarkPaidInTx applies the paid transition inside the caller's transaction,
// so the payment bridge can flip the order, its cart, and stock atomically.
func (s *service) MarkPaidInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	return s.apply(ctx, tx, id, s.applyPaid)
}

func (s *service) applyPaid(ctx context.Context, tx *gorm.DB, order *models.Order) (bool, error) {
	switch order.Status {
	case enums.OrderStatusPaid:
		return false, nil
	case enums.OrderStatusPendingPayment, enums.OrderStatusFailed:
	default:
		return false, illegalTransition(order.Status, "mark paid")
	}

	if err := s.ledger.Decrement(ctx, tx, ledgerLines(order)); err != nil {
		return false, err
	}
	order.Status = enums.OrderStatusPaid
	return true, nil
}

// MarkFailed moves any non-terminal, non-paid order to failed. Calling it on
// an already-failed order is a no-op.
func (s *service) MarkFailed(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, id, func(ctx context.Context, tx *gorm.DB, order *models.Order) (bool, error) {
		switch order.Status {
		case enums.OrderStatusFailed:
			return false, nil
		case enums.OrderStatusPaid, enums.OrderStatusCancelled, enums.OrderStatusRefunded:
			return false, illegalTransition(order.Status, "mark failed")
		}

		order.Status = enums.OrderStatusFailed
		return true, nil
	})
}

// Cancel moves pending_payment or failed to cancelled. No stock was ever
// taken for those states, so there is nothing to restore. A paid order must
// be refunded instead.
func (s *service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	return s.transition(ctx, id, func(ctx context.Context, tx *gorm.DB, order *models.Order) (bool, error) {
		switch order.Status {
		case enums.OrderStatusPendingPayment, enums.OrderStatusFailed:
		case enums.OrderStatusPaid:
			return false, pkgerrors.New(pkgerrors.CodeStateConflict, "a paid order must be refunded, not cancelled")
		default:
			return false, illegalTransition(order.Status, "cancel")
		}

		now := time.Now().UTC()
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		if reason != "" {
			order.CancelReason = &reason
		}
		return true, nil
	})
}

// Refund moves paid to refunded and restores stock for every line. Lines
// whose product was deleted or never tracked stock are skipped.
func (s *service) Refund(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	return s.transition(ctx, id, func(ctx context.Context, tx *gorm.DB, order *models.Order) (bool, error) {
		if order.Status != enums.OrderStatusPaid {
			return false, illegalTransition(order.Status, "refund")
		}

		if err := s.ledger.Restore(ctx, tx, ledgerLines(order)); err != nil {
			return false, err
		}

		now := time.Now().UTC()
		order.Status = enums.OrderStatusRefunded
		order.RefundedAt = &now
		if reason != "" {
			order.RefundReason = &reason
		}
		return true, nil
	})
}

type transitionFunc func(ctx context.Context, tx *gorm.DB, order *models.Order) (bool, error)

// transition runs apply inside its own transaction.
func (s *service) transition(ctx context.Context, id uuid.UUID, fn transitionFunc) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.apply(ctx, tx, id, fn)
		if err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// apply locks the order, runs fn, and persists the mutation when fn reports a
// change. fn returning (false, nil) means the order was already in the target
// state.
func (s *service) apply(ctx context.Context, tx *gorm.DB, id uuid.UUID, fn transitionFunc) (*models.Order, error) {
	txRepo := s.repo.WithTx(tx)
	order, err := txRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}

	changed, err := fn(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if changed {
		if _, err := txRepo.Update(ctx, order); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func ledgerLines(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Qty: item.Qty})
	}
	return lines
}

func illegalTransition(from enums.OrderStatus, event string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot %s an order in status %s", event, from))
}
