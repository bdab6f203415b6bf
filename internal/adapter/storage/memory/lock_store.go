package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lockEntry struct {
	token   string
	expires time.Time
}

// LockStore is a process-local ports.LockStore. Expired locks are reclaimed
// lazily on the next Acquire of the same key.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	now   func() time.Time
}

// NewLockStore creates an empty process-local lock table.
func NewLockStore() *LockStore {
	return &LockStore{locks: make(map[string]lockEntry), now: time.Now}
}

func (s *LockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if held, ok := s.locks[key]; ok && now.Before(held.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	s.locks[key] = lockEntry{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (s *LockStore) Release(ctx context.Context, key string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.locks[key]; ok && held.token == token {
		delete(s.locks, key)
	}
	return nil
}
