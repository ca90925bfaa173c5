package batch

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, b Batch) error
	Get(ctx context.Context, id uuid.UUID) (Batch, error)
}
