package ledger

import (
	"context"
	"sync"

	"pharmatrace/pkg/platform/sentinel"
)

// InMemoryStore keeps the chain in a slice. The mutex serializes appends, so
// the compare-and-swap semantics match the Postgres store exactly.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry, expectedPrev string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip := GenesisHash
	if n := len(s.entries); n > 0 {
		tip = s.entries[n-1].CurrentHash
	}
	if tip != expectedPrev {
		return sentinel.ErrConflict
	}
	entry.Seq = int64(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) Latest(_ context.Context) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return Entry{}, sentinel.ErrNotFound
	}
	return s.entries[len(s.entries)-1], nil
}

func (s *InMemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries...), nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityType, entityID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Tamper overwrites a stored entry in place. Only for integrity-check tests;
// production code has no mutation path.
func (s *InMemoryStore) Tamper(index int, mutate func(*Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= 0 && index < len(s.entries) {
		mutate(&s.entries[index])
	}
}
