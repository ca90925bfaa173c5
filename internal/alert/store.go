package alert

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	Save(ctx context.Context, a Alert) error
	Get(ctx context.Context, id uuid.UUID) (Alert, error)
	// Acknowledge marks an alert acknowledged only if it is not already;
	// sentinel.ErrConflict otherwise.
	Acknowledge(ctx context.Context, id uuid.UUID, actorID string) (Alert, error)
	ListUnacknowledged(ctx context.Context) ([]Alert, error)
}
