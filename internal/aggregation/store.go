package aggregation

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, a Aggregation) error
	Get(ctx context.Context, id uuid.UUID) (Aggregation, error)
	Update(ctx context.Context, a Aggregation) error
}
