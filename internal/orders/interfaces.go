package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// OrderRepository defines the persistence surface required by the order
// service.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, status *enums.OrderStatus, limit, offset int) ([]models.Order, error)
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) (*models.Order, error)
}
