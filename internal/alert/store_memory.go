package alert

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]Alert
	order  []uuid.UUID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{alerts: make(map[uuid.UUID]Alert)}
}

func (s *InMemoryStore) Save(_ context.Context, a Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.alerts[a.ID]; !exists {
		s.order = append(s.order, a.ID)
	}
	s.alerts[a.ID] = a
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return Alert{}, sentinel.ErrNotFound
	}
	return a, nil
}

func (s *InMemoryStore) Acknowledge(_ context.Context, id uuid.UUID, actorID string) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return Alert{}, sentinel.ErrNotFound
	}
	if a.Acknowledged {
		return Alert{}, sentinel.ErrConflict
	}
	now := time.Now()
	a.Acknowledged = true
	a.AcknowledgedBy = actorID
	a.AcknowledgedAt = &now
	s.alerts[id] = a
	return a, nil
}

func (s *InMemoryStore) ListUnacknowledged(_ context.Context) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Alert
	for _, id := range s.order {
		if a := s.alerts[id]; !a.Acknowledged {
			out = append(out, a)
		}
	}
	return out, nil
}
