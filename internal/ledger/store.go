package ledger

import "context"

// Store persists chain entries. The chain has a single global tip; Append is a
// compare-and-swap on it so two concurrent appends can never both claim the
// same previous hash.
type Store interface {
	// Append persists the entry only if the current chain tip hash equals
	// expectedPrev (GenesisHash for an empty chain). Returns
	// sentinel.ErrConflict when another append won the race.
	Append(ctx context.Context, entry Entry, expectedPrev string) error
	// Latest returns the chain tip, or sentinel.ErrNotFound for an empty
	// chain.
	Latest(ctx context.Context) (Entry, error)
	// List returns all entries in insertion order.
	List(ctx context.Context) ([]Entry, error)
	// ListByEntity returns the entries describing one entity, in insertion
	// order.
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error)
}
