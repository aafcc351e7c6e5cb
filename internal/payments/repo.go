package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/pkg/db/models"
	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// PaymentRepository defines the persistence surface required by the bridge.
type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByResponseToken(ctx context.Context, provider, token string) (*models.Payment, error)
	FindNewestPending(ctx context.Context, provider string) (*models.Payment, error)
}

// Repository exposes persistence operations for payment conversations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a payment repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new payment conversation.
func (r *Repository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.Status == "" {
		payment.Status = enums.PaymentStatusPending
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

// Update saves the payment row.
func (r *Repository) Update(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := r.db.WithContext(ctx).Save(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

// GetByID loads one payment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// tokenScanLimit caps how many recent conversations a token match inspects.
const tokenScanLimit = 100

// FindByResponseToken matches a provider callback token against stored raw
// responses. raw_response is jsonb, which has no LIKE operator in postgres,
// so the match runs in Go over the newest conversations for the provider.
// The payload stays opaque; only a substring match is performed.
func (r *Repository) FindByResponseToken(ctx context.Context, provider, token string) (*models.Payment, error) {
	var candidates []models.Payment
	err := r.db.WithContext(ctx).
		Where("provider = ?", provider).
		Order("created_at DESC").
		Limit(tokenScanLimit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if candidates[i].RawResponse.Contains(token) {
			return &candidates[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// FindNewestPending returns the most recent still-pending payment for the
// provider. Degraded correlation fallback only.
func (r *Repository) FindNewestPending(ctx context.Context, provider string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("provider = ? AND status = ?", provider, enums.PaymentStatusPending).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
