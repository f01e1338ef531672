package idempotency

import (
	"context"
	"sync"
	"time"

	"companion/pkg/platform/sentinel"
	txcontext "companion/pkg/platform/tx"
	"companion/pkg/requestcontext"
)

// InMemoryKeyStore records claimed idempotency keys in process memory.
type InMemoryKeyStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
}

func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{keys: make(map[string]time.Time)}
}

// Claim records key, or returns sentinel.ErrAlreadyUsed if it was claimed
// before. Inside a unit of work the claim is released if that work fails.
func (s *InMemoryKeyStore) Claim(ctx context.Context, key string) error {
	if key == "" {
		return sentinel.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.keys[key] = requestcontext.Now(ctx)

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		delete(s.keys, key)
		s.mu.Unlock()
	})
	return nil
}
