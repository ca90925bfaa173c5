package batch

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	batches map[uuid.UUID]Batch
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{batches: make(map[uuid.UUID]Batch)}
}

func (s *InMemoryStore) Create(_ context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[b.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.batches[b.ID] = b
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return Batch{}, sentinel.ErrNotFound
	}
	return b, nil
}
