package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/pkg/enums"
)

// Cart binds a browsing session (and optionally a user) to at most one active
// cart. A cart flips to converted when its order is paid and is never reused.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID    *uuid.UUID       `gorm:"column:user_id;type:uuid;index"`
	SessionID string           `gorm:"column:session_id;not null;index"`
	Status    enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	Currency  string           `gorm:"column:currency;not null"`
	Items     []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
