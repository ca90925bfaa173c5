package recall

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	recalls map[uuid.UUID]Recall
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{recalls: make(map[uuid.UUID]Recall)}
}

func (s *InMemoryStore) Create(_ context.Context, r Recall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recalls[r.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.recalls[r.ID] = r
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (Recall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recalls[id]
	if !ok {
		return Recall{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) Update(_ context.Context, r Recall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recalls[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.recalls[r.ID] = r
	return nil
}

func (s *InMemoryStore) HasActiveByBatch(_ context.Context, batchID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recalls {
		if r.BatchID == batchID && r.Status == StatusActive {
			return true, nil
		}
	}
	return false, nil
}
