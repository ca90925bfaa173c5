package recall

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, r Recall) error
	Get(ctx context.Context, id uuid.UUID) (Recall, error)
	Update(ctx context.Context, r Recall) error
	// HasActiveByBatch reports whether the batch currently has an active
	// recall. This is the pipeline's recall check.
	HasActiveByBatch(ctx context.Context, batchID uuid.UUID) (bool, error)
}
