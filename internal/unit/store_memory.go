package unit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	units    map[uuid.UUID]SerializedUnit
	bySerial map[string]uuid.UUID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		units:    make(map[uuid.UUID]SerializedUnit),
		bySerial: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, u SerializedUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bySerial[u.SerialNumber]; exists {
		return sentinel.ErrDuplicate
	}
	s.units[u.ID] = u
	s.bySerial[u.SerialNumber] = u.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (SerializedUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return SerializedUnit{}, sentinel.ErrNotFound
	}
	return u, nil
}

func (s *InMemoryStore) GetBySerial(_ context.Context, serial string) (SerializedUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySerial[serial]
	if !ok {
		return SerializedUnit{}, sentinel.ErrNotFound
	}
	return s.units[id], nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, expected, next UnitStatus, disp *Dispensation) (SerializedUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return SerializedUnit{}, sentinel.ErrNotFound
	}
	if u.Status != expected {
		return SerializedUnit{}, sentinel.ErrConflict
	}
	u.Status = next
	u.Dispensation = disp
	u.UpdatedAt = time.Now()
	s.units[id] = u
	return u, nil
}

func (s *InMemoryStore) BulkUpdateStatus(_ context.Context, batchID uuid.UUID, from, to UnitStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var moved int64
	now := time.Now()
	for id, u := range s.units {
		if u.BatchID == batchID && u.Status == from {
			u.Status = to
			u.UpdatedAt = now
			s.units[id] = u
			moved++
		}
	}
	return moved, nil
}

func (s *InMemoryStore) LinkAggregation(_ context.Context, id, aggregationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if u.Status != StatusActive || u.ParentAggregationID != nil {
		return sentinel.ErrConflict
	}
	aggID := aggregationID
	u.ParentAggregationID = &aggID
	u.UpdatedAt = time.Now()
	s.units[id] = u
	return nil
}

func (s *InMemoryStore) UnlinkAggregation(_ context.Context, id, aggregationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if u.ParentAggregationID == nil || *u.ParentAggregationID != aggregationID {
		return sentinel.ErrConflict
	}
	u.ParentAggregationID = nil
	u.UpdatedAt = time.Now()
	s.units[id] = u
	return nil
}

func (s *InMemoryStore) CountByBatch(_ context.Context, batchID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, u := range s.units {
		if u.BatchID == batchID {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ListByBatch(_ context.Context, batchID uuid.UUID) ([]SerializedUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SerializedUnit
	for _, u := range s.units {
		if u.BatchID == batchID {
			out = append(out, u)
		}
	}
	return out, nil
}

// TamperCryptoTail overwrites a unit's stored tag in place. Only for
// counterfeit-detection tests; identity fields have no production mutation
// path.
func (s *InMemoryStore) TamperCryptoTail(serial, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.bySerial[serial]; ok {
		u := s.units[id]
		u.CryptoTail = tag
		s.units[id] = u
	}
}
