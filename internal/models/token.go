// internal/models/token.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is an opaque, single-use credential exchanged for a new session token.
type RefreshToken struct {
	BaseModel
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Token     string    `json:"-" gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	IsRevoked bool      `json:"is_revoked" gorm:"default:false"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (t *RefreshToken) UsableAt(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}
