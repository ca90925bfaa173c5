// Package aggregation groups serialized units into cases and pallets for
// shipping, and releases them again on disaggregation.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/ledger"
	"pharmatrace/internal/unit"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/platform/tx"
)

// UnitLinker is the unit store surface the aggregation workflow drives. Link
// enforces the child preconditions (Active, not already aggregated) in its
// update predicate.
type UnitLinker interface {
	Get(ctx context.Context, id uuid.UUID) (unit.SerializedUnit, error)
	LinkAggregation(ctx context.Context, id, aggregationID uuid.UUID) error
	UnlinkAggregation(ctx context.Context, id, aggregationID uuid.UUID) error
}

type Service struct {
	store  Store
	units  UnitLinker
	ledger *ledger.Recorder
	txr    tx.Runner
	logger *slog.Logger
}

func NewService(store Store, units UnitLinker, led *ledger.Recorder, txr tx.Runner, logger *slog.Logger) *Service {
	if txr == nil {
		txr = tx.NopRunner{}
	}
	return &Service{store: store, units: units, ledger: led, txr: txr, logger: logger}
}

// Create groups child units under a parent container serial. Every child must
// exist, be Active, belong to the same batch, and not already sit in another
// aggregation; the whole grouping commits or rolls back as one.
func (s *Service) Create(ctx context.Context, parentSerial string, aggType Type, childUnitIDs []uuid.UUID, actorID string) (Aggregation, error) {
	if len(childUnitIDs) == 0 {
		return Aggregation{}, fmt.Errorf("at least one child unit is required: %w", sentinel.ErrInvalidState)
	}

	var batchID uuid.UUID
	for i, id := range childUnitIDs {
		child, err := s.units.Get(ctx, id)
		if err != nil {
			return Aggregation{}, fmt.Errorf("resolve child unit %s: %w", id, err)
		}
		if child.Status != unit.StatusActive {
			return Aggregation{}, fmt.Errorf("unit %s is not active: %w", child.SerialNumber, sentinel.ErrConflict)
		}
		if child.ParentAggregationID != nil {
			return Aggregation{}, fmt.Errorf("unit %s is already aggregated: %w", child.SerialNumber, sentinel.ErrConflict)
		}
		if i == 0 {
			batchID = child.BatchID
		} else if child.BatchID != batchID {
			return Aggregation{}, fmt.Errorf("child units span multiple batches: %w", sentinel.ErrInvalidState)
		}
	}

	a := Aggregation{
		ID:                 uuid.New(),
		ParentSerialNumber: parentSerial,
		Type:               aggType,
		BatchID:            batchID,
		ChildUnitIDs:       childUnitIDs,
		Active:             true,
		CreatedBy:          actorID,
		CreatedAt:          time.Now(),
	}

	err := s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, a); err != nil {
			return fmt.Errorf("create aggregation: %w", err)
		}
		for _, id := range childUnitIDs {
			if err := s.units.LinkAggregation(ctx, id, a.ID); err != nil {
				return fmt.Errorf("link unit %s: %w", id, err)
			}
		}
		_, err := s.ledger.Append(ctx, "AGGREGATION_CREATED", entityAggregation, a.ID.String(), actorID,
			map[string]any{
				"type":               string(aggType),
				"parentSerialNumber": parentSerial,
				"childCount":         len(childUnitIDs),
			})
		return err
	})
	if err != nil {
		return Aggregation{}, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "aggregation created",
			"type", string(aggType),
			"parent_serial", parentSerial,
			"child_count", len(childUnitIDs),
		)
	}
	return a, nil
}

// Disaggregate releases an aggregation's children back to standalone
// circulation. Disaggregating twice conflicts.
func (s *Service) Disaggregate(ctx context.Context, aggregationID uuid.UUID, actorID string) (Aggregation, error) {
	a, err := s.store.Get(ctx, aggregationID)
	if err != nil {
		return Aggregation{}, fmt.Errorf("resolve aggregation %s: %w", aggregationID, err)
	}
	if !a.Active {
		return Aggregation{}, fmt.Errorf("aggregation is already disaggregated: %w", sentinel.ErrConflict)
	}

	now := time.Now()
	a.Active = false
	a.DisaggregatedBy = actorID
	a.DisaggregatedAt = &now

	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		for _, id := range a.ChildUnitIDs {
			err := s.units.UnlinkAggregation(ctx, id, a.ID)
			// A child destroyed during a recall may be gone; the release
			// must still complete for the remaining children.
			if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return fmt.Errorf("unlink unit %s: %w", id, err)
			}
		}
		if err := s.store.Update(ctx, a); err != nil {
			return fmt.Errorf("update aggregation: %w", err)
		}
		_, err := s.ledger.Append(ctx, "AGGREGATION_DISAGGREGATED", entityAggregation, a.ID.String(), actorID,
			map[string]any{"type": string(a.Type)})
		return err
	})
	if err != nil {
		return Aggregation{}, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "aggregation disaggregated", "aggregation_id", aggregationID, "type", string(a.Type))
	}
	return a, nil
}

// Get returns one aggregation.
func (s *Service) Get(ctx context.Context, aggregationID uuid.UUID) (Aggregation, error) {
	return s.store.Get(ctx, aggregationID)
}

const entityAggregation = "Aggregation"
