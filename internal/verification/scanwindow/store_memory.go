package scanwindow

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps per-serial scan timestamps in memory, pruning anything
// older than the window on every record.
type MemoryStore struct {
	mu    sync.Mutex
	scans map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scans: make(map[string][]time.Time)}
}

func (s *MemoryStore) Record(_ context.Context, serialNumber string, at time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := at.Add(-window)
	kept := s.scans[serialNumber][:0]
	for _, ts := range s.scans[serialNumber] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, at)
	s.scans[serialNumber] = kept
	return int64(len(kept)), nil
}
