// internal/sessions/memory.go
package sessions

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type expiryEntry struct {
	token     string
	expiresAt time.Time
}

type expiryHeap []expiryEntry

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x interface{}) { *h = append(*h, x.(expiryEntry)) }
func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MemoryStore keeps sessions in process. Expired sessions stay readable until the
// next Sweep; callers check ExpiredAt.
type MemoryStore struct {
	mu      sync.Mutex
	byToken map[string]Session
	byID    map[uuid.UUID]string
	expiry  expiryHeap
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken: make(map[string]Session),
		byID:    make(map[uuid.UUID]string),
	}
}

func (s *MemoryStore) Put(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[session.Token] = *session
	s.byID[session.ID] = session.Token
	heap.Push(&s.expiry, expiryEntry{token: session.Token, expiresAt: session.ExpiresAt})
	return nil
}

func (s *MemoryStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	session, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (s *MemoryStore) Complete(ctx context.Context, token string, at time.Time) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	if session.CompletedAt != nil {
		return nil, ErrAlreadyCompleted
	}
	completed := at
	session.CompletedAt = &completed
	s.byToken[token] = session
	return &session, nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(token)
	return nil
}

func (s *MemoryStore) remove(token string) {
	if session, ok := s.byToken[token]; ok {
		delete(s.byID, session.ID)
		delete(s.byToken, token)
	}
}

func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for s.expiry.Len() > 0 && !now.Before(s.expiry[0].expiresAt) {
		entry := heap.Pop(&s.expiry).(expiryEntry)
		session, ok := s.byToken[entry.token]
		// A re-Put token carries a newer expiry entry of its own.
		if !ok || !session.ExpiredAt(now) {
			continue
		}
		s.remove(entry.token)
		removed++
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}

// Run sweeps every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := s.Sweep(now); removed > 0 {
				logrus.WithField("removed", removed).Debug("Swept expired verification sessions")
			}
		}
	}
}
