package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindActiveGuestBySession(ctx context.Context, sessionID string) (*models.Cart, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	Update(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CartStatus) error
	UpsertItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
