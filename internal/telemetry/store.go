package telemetry

import (
	"context"

	"github.com/google/uuid"
)

// Store persists temperature readings. Readings are append-only.
type Store interface {
	Append(ctx context.Context, r Reading) error
	// ListByBatch returns a batch's readings, newest first.
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]Reading, error)
}
