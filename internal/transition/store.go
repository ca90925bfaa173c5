package transition

import (
	"context"

	"github.com/google/uuid"
)

// Store persists transition records. Implementations never mutate or delete
// existing records.
type Store interface {
	Append(ctx context.Context, record Record) error
	ListByEntity(ctx context.Context, entityType EntityType, entityID uuid.UUID) ([]Record, error)
}
