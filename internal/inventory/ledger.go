package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
)

// Line is one stock movement: the product affected and the quantity moved.
// A nil ProductID (product hard-deleted after purchase) is skipped.
type Line struct {
	ProductID *uuid.UUID
	Qty       int
}

// Ledger mutates Product.stock under row-level locks. Every movement locks
// the product row inside the caller's transaction, re-reads the current stock
// under that lock, then writes the adjusted value. Blind UPDATE ... SET
// stock = stock - n statements are deliberately not used here.
type Ledger struct{}

// NewLedger constructs the inventory ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Decrement consumes stock for every trackable line, clamping at zero.
// Missing and untracked products are skipped without failing the caller's
// transaction.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, lines []Line) error {
	return l.adjust(ctx, tx, lines, func(stock, qty int) int {
		next := stock - qty
		if next < 0 {
			return 0
		}
		return next
	})
}

// Restore returns stock for every trackable line, used on refund.
func (l *Ledger) Restore(ctx context.Context, tx *gorm.DB, lines []Line) error {
	return l.adjust(ctx, tx, lines, func(stock, qty int) int {
		return stock + qty
	})
}

func (l *Ledger) adjust(ctx context.Context, tx *gorm.DB, lines []Line, next func(stock, qty int) int) error {
	for _, line := range lines {
		if line.ProductID == nil || line.Qty <= 0 {
			continue
		}

		var product models.Product
		query := tx.WithContext(ctx)
		// sqlite has no SELECT ... FOR UPDATE; its writer lock covers the
		// transaction instead.
		if tx.Dialector.Name() != "sqlite" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := query.Where("id = ?", *line.ProductID).First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}

		if !product.TracksStock() {
			continue
		}

		updated := next(*product.Stock, line.Qty)
		if err := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", product.ID).
			Update("stock", updated).Error; err != nil {
			return err
		}
	}
	return nil
}
