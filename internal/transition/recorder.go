package transition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ActorDirectory resolves actor IDs to usernames for human-readable records.
// Absence is tolerated.
type ActorDirectory interface {
	UsernameFor(ctx context.Context, actorID string) (string, bool)
}

// Recorder writes transition records, enriching them with the acting user's
// name when the directory knows it.
type Recorder struct {
	store  Store
	actors ActorDirectory
	logger *slog.Logger
}

func NewRecorder(store Store, actors ActorDirectory, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, actors: actors, logger: logger}
}

// Record appends one transition record. Callers that require the transition to
// be atomic with the status write run this on the same transaction context.
func (r *Recorder) Record(ctx context.Context, entityType EntityType, entityID uuid.UUID, fromStatus, toStatus, reason, actorID string) error {
	record := Record{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Reason:     reason,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	}
	if r.actors != nil && actorID != "" {
		if username, ok := r.actors.UsernameFor(ctx, actorID); ok {
			record.ActorUsername = username
		}
	}

	if err := r.store.Append(ctx, record); err != nil {
		return fmt.Errorf("record status transition: %w", err)
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "recorded status transition",
			"entity_type", entityType,
			"entity_id", entityID,
			"from", fromStatus,
			"to", toStatus,
		)
	}
	return nil
}

// History returns the transitions recorded for one entity in insertion order.
func (r *Recorder) History(ctx context.Context, entityType EntityType, entityID uuid.UUID) ([]Record, error) {
	return r.store.ListByEntity(ctx, entityType, entityID)
}
