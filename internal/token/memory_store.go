package token

import (
	"context"
	"sync"
)

// MemoryStore keeps the token state in process memory. Suitable for a
// single-instance deployment; multi-instance setups should use the redis
// store so refreshes are visible across processes.
type MemoryStore struct {
	mu sync.Mutex
	st State
	ok bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st, s.ok, nil
}

func (s *MemoryStore) Save(ctx context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = st
	s.ok = true
	return nil
}
