package httptransport

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/aggregation"
	"pharmatrace/internal/alert"
	"pharmatrace/internal/batch"
	"pharmatrace/internal/ledger"
	"pharmatrace/internal/recall"
	"pharmatrace/internal/telemetry"
	"pharmatrace/internal/unit"
	"pharmatrace/internal/verification"
)

// VerificationService runs the scan classification pipeline.
type VerificationService interface {
	Verify(ctx context.Context, req verification.Request) (verification.Outcome, error)
	History(ctx context.Context, serialNumber string, since time.Time) ([]verification.Outcome, error)
	Stats(ctx context.Context, since time.Time) (verification.Stats, error)
}

// UnitService drives the serialized-unit state machine.
type UnitService interface {
	Create(ctx context.Context, req unit.CreateRequest, actorID string) (unit.SerializedUnit, error)
	BulkCreate(ctx context.Context, batchID uuid.UUID, gtin string, quantity int, actorID string) ([]unit.SerializedUnit, error)
	Get(ctx context.Context, unitID uuid.UUID) (unit.SerializedUnit, error)
	Decommission(ctx context.Context, unitID uuid.UUID, actorID, pharmacy string) (unit.SerializedUnit, error)
	RevertDecommission(ctx context.Context, unitID uuid.UUID, actorID, reason string) (unit.SerializedUnit, error)
	Destroy(ctx context.Context, unitID uuid.UUID, actorID, reason string) (unit.SerializedUnit, error)
}

// BatchStore is the batch registry the API exposes directly; batches carry no
// workflow beyond creation and lookup.
type BatchStore interface {
	Create(ctx context.Context, b batch.Batch) error
	Get(ctx context.Context, id uuid.UUID) (batch.Batch, error)
}

// RecallService owns the recall workflow.
type RecallService interface {
	Initiate(ctx context.Context, batchID uuid.UUID, classification recall.Classification, reason, actorID string) (recall.Recall, error)
	Get(ctx context.Context, recallID uuid.UUID) (recall.Recall, error)
	RecordRecovery(ctx context.Context, recallID, unitID uuid.UUID, actorID string) (recall.Recall, error)
	Complete(ctx context.Context, recallID uuid.UUID, actorID string) (recall.Recall, error)
}

// AggregationService groups units into shipping containers.
type AggregationService interface {
	Create(ctx context.Context, parentSerial string, aggType aggregation.Type, childUnitIDs []uuid.UUID, actorID string) (aggregation.Aggregation, error)
	Disaggregate(ctx context.Context, aggregationID uuid.UUID, actorID string) (aggregation.Aggregation, error)
	Get(ctx context.Context, aggregationID uuid.UUID) (aggregation.Aggregation, error)
}

// TelemetryService ingests cold-chain readings.
type TelemetryService interface {
	Record(ctx context.Context, batchID uuid.UUID, temperatureC, humidityPct float64, location, actorID string) (telemetry.Reading, error)
	History(ctx context.Context, batchID uuid.UUID) ([]telemetry.Reading, error)
}

// LedgerReader is the read-only provenance surface.
type LedgerReader interface {
	Entries(ctx context.Context) ([]ledger.Entry, error)
	EntriesForEntity(ctx context.Context, entityType, entityID string) ([]ledger.Entry, error)
	CheckIntegrity(ctx context.Context) (ledger.IntegrityReport, error)
}

// AlertService is the operator alert surface.
type AlertService interface {
	Active(ctx context.Context) ([]alert.Alert, error)
	Acknowledge(ctx context.Context, id uuid.UUID, actorID string) (alert.Alert, error)
}

// HealthChecker reports backing-store health for the readiness endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}
