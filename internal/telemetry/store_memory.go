package telemetry

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	readings []Reading
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, r Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	return nil
}

func (s *InMemoryStore) ListByBatch(_ context.Context, batchID uuid.UUID) ([]Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Reading
	for i := len(s.readings) - 1; i >= 0; i-- {
		if s.readings[i].BatchID == batchID {
			out = append(out, s.readings[i])
		}
	}
	return out, nil
}
