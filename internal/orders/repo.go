package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// Repository exposes persistence operations for the order graph.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) preloadGraph(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.TaxLines").
		Preload("Addresses").
		Preload("Shipment").
		Preload("Payments")
}

// GetByID loads the order with its full graph.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.preloadGraph(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByIDForUpdate loads the order graph holding a row lock on the order for
// the duration of the surrounding transaction, serializing concurrent state
// transitions.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var order models.Order
	if err := query.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}

	// Associations load outside the locking clause; FOR UPDATE cannot be
	// combined with the preload joins on all drivers.
	full, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	full.Status = order.Status
	return full, nil
}

// List returns orders newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status *enums.OrderStatus, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	query := r.preloadGraph(ctx).Order("created_at DESC").Limit(limit).Offset(offset)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts the order and its associated rows.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.Status == "" {
		order.Status = enums.OrderStatusPendingPayment
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// Update saves the order row. Associations are written explicitly by their
// owners, never through Save.
func (r *Repository) Update(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Save(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}
