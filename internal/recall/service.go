// Package recall owns the recall workflow: freezing a batch, tracking
// recovery of quarantined units, and closing out the recall.
package recall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/alert"
	"pharmatrace/internal/batch"
	"pharmatrace/internal/ledger"
	"pharmatrace/internal/unit"
	"pharmatrace/pkg/platform/sentinel"
)

// Quarantiner is the unit state machine operations the recall workflow drives.
type Quarantiner interface {
	Quarantine(ctx context.Context, batchID uuid.UUID, actorID, reason string) (int64, error)
	Destroy(ctx context.Context, unitID uuid.UUID, actorID, reason string) (unit.SerializedUnit, error)
	Get(ctx context.Context, unitID uuid.UUID) (unit.SerializedUnit, error)
}

// AlertSink receives fire-and-forget operator alerts.
type AlertSink interface {
	Raise(ctx context.Context, alertType string, severity alert.Severity, message, relatedEntityType string, relatedEntityID *uuid.UUID)
}

// BatchDirectory resolves batches for human-readable alert messages.
type BatchDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (batch.Batch, error)
}

type Service struct {
	store   Store
	batches BatchDirectory
	units   Quarantiner
	counter UnitCounter
	alerts  AlertSink
	ledger  *ledger.Recorder
	logger  *slog.Logger
}

// UnitCounter counts the units of a batch for the affected-units figure.
type UnitCounter interface {
	CountByBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
}

func NewService(store Store, batches BatchDirectory, units Quarantiner, counter UnitCounter, alerts AlertSink, led *ledger.Recorder, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		batches: batches,
		units:   units,
		counter: counter,
		alerts:  alerts,
		ledger:  led,
		logger:  logger,
	}
}

// Initiate opens a recall against a batch and quarantines its active units in
// one set-based update. A batch can carry at most one active recall.
func (s *Service) Initiate(ctx context.Context, batchID uuid.UUID, classification Classification, reason, actorID string) (Recall, error) {
	b, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return Recall{}, fmt.Errorf("resolve batch %s: %w", batchID, err)
	}

	active, err := s.store.HasActiveByBatch(ctx, batchID)
	if err != nil {
		return Recall{}, fmt.Errorf("check existing recall: %w", err)
	}
	if active {
		return Recall{}, fmt.Errorf("batch %s already has an active recall: %w", b.BatchNumber, sentinel.ErrConflict)
	}

	affected, err := s.counter.CountByBatch(ctx, batchID)
	if err != nil {
		return Recall{}, fmt.Errorf("count affected units: %w", err)
	}

	r := Recall{
		ID:             uuid.New(),
		BatchID:        batchID,
		Classification: classification,
		Status:         StatusActive,
		Reason:         reason,
		AffectedUnits:  affected,
		InitiatedBy:    actorID,
		InitiatedAt:    time.Now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return Recall{}, fmt.Errorf("create recall: %w", err)
	}

	quarantined, err := s.units.Quarantine(ctx, batchID, actorID, "Recall: "+reason)
	if err != nil {
		return Recall{}, fmt.Errorf("quarantine batch: %w", err)
	}

	s.alerts.Raise(ctx, alert.TypeRecallInitiated, alert.SeverityHigh,
		fmt.Sprintf("Recall initiated for batch %s: %s", b.BatchNumber, reason),
		"Recall", &r.ID)

	s.ledger.TryAppend(ctx, "RECALL_INITIATED", "Recall", r.ID.String(), actorID, map[string]any{
		"batchId":          batchID.String(),
		"classification":   string(classification),
		"totalAffected":    affected,
		"quarantinedCount": quarantined,
	})

	if s.logger != nil {
		s.logger.WarnContext(ctx, "recall initiated",
			"batch_number", b.BatchNumber,
			"affected_units", affected,
			"quarantined", quarantined,
		)
	}
	return r, nil
}

// RecordRecovery marks one quarantined unit destroyed and updates the recall's
// effectiveness figure.
func (s *Service) RecordRecovery(ctx context.Context, recallID, unitID uuid.UUID, actorID string) (Recall, error) {
	r, err := s.store.Get(ctx, recallID)
	if err != nil {
		return Recall{}, fmt.Errorf("resolve recall %s: %w", recallID, err)
	}
	if r.Status != StatusActive {
		return Recall{}, fmt.Errorf("recall is not active: %w", sentinel.ErrConflict)
	}

	destroyed, err := s.units.Destroy(ctx, unitID, actorID, "recall recovery")
	if err != nil {
		return Recall{}, err
	}

	r.RecoveredUnits++
	if r.AffectedUnits > 0 {
		r.Effectiveness = float64(r.RecoveredUnits) * 100 / float64(r.AffectedUnits)
	}
	if err := s.store.Update(ctx, r); err != nil {
		return Recall{}, fmt.Errorf("update recall statistics: %w", err)
	}

	s.ledger.TryAppend(ctx, "RECALL_UNIT_RECOVERED", "Recall", recallID.String(), actorID,
		map[string]any{"unitId": unitID.String(), "serialNumber": destroyed.SerialNumber})
	return r, nil
}

// Complete closes an active recall.
func (s *Service) Complete(ctx context.Context, recallID uuid.UUID, actorID string) (Recall, error) {
	r, err := s.store.Get(ctx, recallID)
	if err != nil {
		return Recall{}, fmt.Errorf("resolve recall %s: %w", recallID, err)
	}
	if r.Status != StatusActive {
		return Recall{}, fmt.Errorf("recall is not active: %w", sentinel.ErrConflict)
	}

	now := time.Now()
	r.Status = StatusCompleted
	r.ClosedBy = actorID
	r.ClosedAt = &now
	if err := s.store.Update(ctx, r); err != nil {
		return Recall{}, fmt.Errorf("complete recall: %w", err)
	}

	s.ledger.TryAppend(ctx, "RECALL_COMPLETED", "Recall", recallID.String(), actorID,
		map[string]any{"effectiveness": r.Effectiveness})

	if s.logger != nil {
		s.logger.InfoContext(ctx, "recall completed", "recall_id", recallID, "effectiveness", r.Effectiveness)
	}
	return r, nil
}

// Get returns one recall.
func (s *Service) Get(ctx context.Context, recallID uuid.UUID) (Recall, error) {
	return s.store.Get(ctx, recallID)
}

// HasActiveRecall is the read-side check the verification pipeline consults.
func (s *Service) HasActiveRecall(ctx context.Context, batchID uuid.UUID) (bool, error) {
	return s.store.HasActiveByBatch(ctx, batchID)
}
