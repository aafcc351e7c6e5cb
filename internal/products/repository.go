package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
)

// Repository exposes catalog reads for cart, pricing, and checkout.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// GetByID loads one product together with its categories.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetByIDs loads several products with categories, keyed by id. Missing ids
// are simply absent from the result map.
func (r *Repository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	result := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for i := range rows {
		result[rows[i].ID] = &rows[i]
	}
	return result, nil
}

// ListActive returns active catalog products ordered by title, paginated.
func (r *Repository) ListActive(ctx context.Context, limit, offset int) ([]models.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Where("is_active = ?", true).
		Order("title ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
