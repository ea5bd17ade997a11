// internal/sessions/store.go
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/verifyhub/internal/models"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyCompleted = errors.New("session already completed")
)

// Session is one short-lived verification attempt: a QR code scanned by a phone or
// a link mailed to an inbox. Token is the opaque value handed to the end user.
type Session struct {
	ID          uuid.UUID      `json:"id"`
	Token       string         `json:"token"`
	LicenseID   uuid.UUID      `json:"license_id"`
	Channel     models.Channel `json:"channel"`
	Domain      string         `json:"domain"`
	Subject     string         `json:"subject,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store holds sessions until they expire. Implementations must drop a session no
// later than the first Sweep after ExpiresAt.
type Store interface {
	Put(ctx context.Context, session *Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// Complete marks the session completed at. A second completion returns
	// ErrAlreadyCompleted.
	Complete(ctx context.Context, token string, at time.Time) (*Session, error)
	Delete(ctx context.Context, token string) error
	// Sweep removes sessions expired at now and reports how many it removed.
	Sweep(now time.Time) int
}
