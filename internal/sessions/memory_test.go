// internal/sessions/memory_test.go
package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/verifyhub/internal/models"
)

func newSession(token string, expiresAt time.Time) *Session {
	return &Session{
		ID:        uuid.New(),
		Token:     token,
		LicenseID: uuid.New(),
		Channel:   models.ChannelMobile,
		ExpiresAt: expiresAt,
	}
}

func TestMemoryStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := newSession("tok-1", time.Now().Add(time.Minute))

	require.NoError(t, store.Put(ctx, session))

	byToken, err := store.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, byToken.ID)

	byID, err := store.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", byID.Token)

	_, err = store.GetByToken(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "tok-1"))
	_, err = store.GetByID(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CompleteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, newSession("tok-1", time.Now().Add(time.Minute))))
	at := time.Now().UTC()

	completed, err := store.Complete(ctx, "tok-1", at)
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	assert.True(t, completed.CompletedAt.Equal(at))

	_, err = store.Complete(ctx, "tok-1", at)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	_, err = store.Complete(ctx, "missing", at)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.Put(ctx, newSession("old", now.Add(-time.Second))))
	require.NoError(t, store.Put(ctx, newSession("edge", now)))
	require.NoError(t, store.Put(ctx, newSession("fresh", now.Add(time.Minute))))

	assert.Equal(t, 2, store.Sweep(now))
	assert.Equal(t, 1, store.Len())

	_, err := store.GetByToken(ctx, "fresh")
	assert.NoError(t, err)
	assert.Zero(t, store.Sweep(now))
}

func TestMemoryStore_SweepKeepsRenewedToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.Put(ctx, newSession("tok", now.Add(-time.Second))))
	require.NoError(t, store.Put(ctx, newSession("tok", now.Add(time.Minute))))

	assert.Zero(t, store.Sweep(now))
	assert.Equal(t, 1, store.Len())

	assert.Equal(t, 1, store.Sweep(now.Add(2*time.Minute)))
	assert.Zero(t, store.Len())
}

func TestSessionExpiredAt(t *testing.T) {
	now := time.Now()
	session := newSession("tok", now)

	assert.True(t, session.ExpiredAt(now))
	assert.False(t, session.ExpiredAt(now.Add(-time.Nanosecond)))
}
