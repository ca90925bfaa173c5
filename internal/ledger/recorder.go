package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/middleware/metadata"
	"pharmatrace/pkg/platform/sentinel"
)

// ActorDirectory resolves actor IDs to usernames for human-readable entries.
// Absence is tolerated.
type ActorDirectory interface {
	UsernameFor(ctx context.Context, actorID string) (string, bool)
}

// appendRetries bounds the optimistic-concurrency loop. A retry only happens
// when another append won the race for the chain tip, and every lost race
// means some append made progress, so the loop cannot livelock.
const appendRetries = 16

// Recorder is the sole writer of the chain. It reads the tip, computes the new
// hash, and relies on the store's compare-and-swap to serialize concurrent
// appends; a lost race re-reads the tip and tries again.
type Recorder struct {
	store  Store
	actors ActorDirectory
	logger *slog.Logger
}

func NewRecorder(store Store, actors ActorDirectory, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, actors: actors, logger: logger}
}

// Append links one action onto the chain and returns the stored entry.
func (r *Recorder) Append(ctx context.Context, action, entityType, entityID, actorID string, payload map[string]any) (Entry, error) {
	entry := Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		ClientIP:   metadata.GetClientIP(ctx),
		UserAgent:  metadata.GetUserAgent(ctx),
		Payload:    payload,
	}
	if r.actors != nil && actorID != "" {
		if username, ok := r.actors.UsernameFor(ctx, actorID); ok {
			entry.ActorUsername = username
		}
	}

	for attempt := 0; attempt < appendRetries; attempt++ {
		previousHash := GenesisHash
		tip, err := r.store.Latest(ctx)
		switch {
		case err == nil:
			previousHash = tip.CurrentHash
		case errors.Is(err, sentinel.ErrNotFound):
			// empty chain, genesis append
		default:
			return Entry{}, fmt.Errorf("read chain tip: %w", err)
		}

		entry.ID = uuid.New()
		entry.CreatedAt = time.Now()
		entry.PreviousHash = previousHash
		entry.CurrentHash = ComputeHash(entry.Action, entry.EntityType, entry.EntityID,
			entry.ActorID, entry.Payload, previousHash, entry.CreatedAt)

		err = r.store.Append(ctx, entry, previousHash)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return Entry{}, fmt.Errorf("append ledger entry: %w", err)
		}
		// Lost the tip race; re-read and retry.
	}
	return Entry{}, fmt.Errorf("append ledger entry: %w", sentinel.ErrConflict)
}

// TryAppend is the best-effort path for audit-only callers: failures are
// logged and swallowed so the business operation that already completed is not
// rolled back. State-changing callers use Append and treat failure as fatal.
func (r *Recorder) TryAppend(ctx context.Context, action, entityType, entityID, actorID string, payload map[string]any) {
	if _, err := r.Append(ctx, action, entityType, entityID, actorID, payload); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "ledger append failed",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
	}
}

// CheckIntegrity replays the chain from genesis, recomputing every hash and
// confirming linkage. The first broken entry's index is reported; everything
// at or after a tampered entry is suspect.
func (r *Recorder) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	entries, err := r.store.List(ctx)
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("list ledger entries: %w", err)
	}

	report := IntegrityReport{Valid: true, Entries: len(entries), FirstBrokenIndex: -1}
	previousHash := GenesisHash
	for i, e := range entries {
		recomputed := ComputeHash(e.Action, e.EntityType, e.EntityID, e.ActorID,
			e.Payload, e.PreviousHash, e.CreatedAt)
		if e.PreviousHash != previousHash || e.CurrentHash != recomputed {
			report.Valid = false
			report.FirstBrokenIndex = i
			break
		}
		previousHash = e.CurrentHash
	}
	return report, nil
}

// Entries returns the whole chain in insertion order.
func (r *Recorder) Entries(ctx context.Context) ([]Entry, error) {
	return r.store.List(ctx)
}

// EntriesForEntity returns the chain entries describing one entity.
func (r *Recorder) EntriesForEntity(ctx context.Context, entityType, entityID string) ([]Entry, error) {
	return r.store.ListByEntity(ctx, entityType, entityID)
}
