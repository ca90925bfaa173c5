package unit

import (
	"context"

	"github.com/google/uuid"
)

// Store persists serialized units. Mutating operations embed their status
// precondition in the update predicate, so two racing transitions on one unit
// cannot both succeed: the loser gets sentinel.ErrConflict.
type Store interface {
	// Create persists a new unit; sentinel.ErrDuplicate on serial collision.
	Create(ctx context.Context, u SerializedUnit) error
	Get(ctx context.Context, id uuid.UUID) (SerializedUnit, error)
	GetBySerial(ctx context.Context, serial string) (SerializedUnit, error)
	// UpdateStatus moves a unit from expected to next atomically, replacing
	// dispensation metadata with disp (nil clears it). sentinel.ErrConflict
	// when the unit's current status is no longer expected.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next UnitStatus, disp *Dispensation) (SerializedUnit, error)
	// BulkUpdateStatus moves every unit of a batch currently in from to the
	// to status in one set-based write, returning how many moved.
	BulkUpdateStatus(ctx context.Context, batchID uuid.UUID, from, to UnitStatus) (int64, error)
	CountByBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]SerializedUnit, error)
	// LinkAggregation attaches an Active, unaggregated unit to an
	// aggregation. sentinel.ErrConflict when the unit is in another status
	// or already belongs to an aggregation.
	LinkAggregation(ctx context.Context, id, aggregationID uuid.UUID) error
	// UnlinkAggregation detaches a unit, guarded on the aggregation it is
	// expected to belong to.
	UnlinkAggregation(ctx context.Context, id, aggregationID uuid.UUID) error
}
