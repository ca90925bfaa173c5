package verification

import (
	"context"
	"sync"
	"time"
)

// MemoryHistoryStore is an in-memory HistoryStore for tests and single-node
// deployments without Postgres.
type MemoryHistoryStore struct {
	mu       sync.RWMutex
	outcomes []Outcome
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

func (s *MemoryHistoryStore) Append(_ context.Context, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func (s *MemoryHistoryStore) ListBySerialSince(_ context.Context, serialNumber string, since time.Time) ([]Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Outcome
	for i := len(s.outcomes) - 1; i >= 0; i-- {
		o := s.outcomes[i]
		if o.SerialNumber != serialNumber || o.VerifiedAt.Before(since) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *MemoryHistoryStore) Stats(_ context.Context, since time.Time) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	var latencySum time.Duration
	for _, o := range s.outcomes {
		if o.VerifiedAt.Before(since) {
			continue
		}
		stats.Total++
		latencySum += o.ResponseTime
		if o.IsValid {
			stats.Valid++
		} else {
			stats.Invalid++
		}
	}
	if stats.Total > 0 {
		stats.AverageLatency = latencySum / time.Duration(stats.Total)
	}
	return stats, nil
}
