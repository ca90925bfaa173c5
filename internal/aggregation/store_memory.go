package aggregation

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu           sync.RWMutex
	aggregations map[uuid.UUID]Aggregation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{aggregations: make(map[uuid.UUID]Aggregation)}
}

func (s *InMemoryStore) Create(_ context.Context, a Aggregation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.aggregations[a.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.aggregations[a.ID] = a
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (Aggregation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.aggregations[id]
	if !ok {
		return Aggregation{}, sentinel.ErrNotFound
	}
	return a, nil
}

func (s *InMemoryStore) Update(_ context.Context, a Aggregation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.aggregations[a.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.aggregations[a.ID] = a
	return nil
}
