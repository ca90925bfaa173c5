package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/alert"
	"pharmatrace/internal/batch"
	"pharmatrace/internal/ledger"
)

// BatchDirectory resolves batches and their storage bounds.
type BatchDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (batch.Batch, error)
}

// AlertSink receives excursion alerts.
type AlertSink interface {
	Raise(ctx context.Context, alertType string, severity alert.Severity, message, relatedEntityType string, relatedEntityID *uuid.UUID)
}

type Service struct {
	store   Store
	batches BatchDirectory
	alerts  AlertSink
	ledger  *ledger.Recorder
	logger  *slog.Logger
}

func NewService(store Store, batches BatchDirectory, alerts AlertSink, led *ledger.Recorder, logger *slog.Logger) *Service {
	return &Service{store: store, batches: batches, alerts: alerts, ledger: led, logger: logger}
}

// Record ingests one temperature reading. A reading outside the batch's
// storage bounds is still stored; it is flagged, alerted, and written to the
// provenance ledger. Batches without configured bounds never flag.
func (s *Service) Record(ctx context.Context, batchID uuid.UUID, temperatureC, humidityPct float64, location, actorID string) (Reading, error) {
	b, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return Reading{}, fmt.Errorf("resolve batch %s: %w", batchID, err)
	}

	r := Reading{
		ID:           uuid.New(),
		BatchID:      batchID,
		TemperatureC: temperatureC,
		HumidityPct:  humidityPct,
		Location:     location,
		RecordedBy:   actorID,
		Excursion:    outOfBounds(b, temperatureC),
		RecordedAt:   time.Now(),
	}
	if err := s.store.Append(ctx, r); err != nil {
		return Reading{}, fmt.Errorf("store temperature reading: %w", err)
	}

	if r.Excursion {
		s.alerts.Raise(ctx, alert.TypeTemperatureExcursion, alert.SeverityHigh,
			fmt.Sprintf("Temperature excursion for batch %s: %.1f°C at %s", b.BatchNumber, temperatureC, location),
			"Batch", &batchID)
		s.ledger.TryAppend(ctx, "TEMPERATURE_EXCURSION", "Batch", batchID.String(), actorID, map[string]any{
			"temperatureC": temperatureC,
			"location":     location,
		})
		if s.logger != nil {
			s.logger.WarnContext(ctx, "temperature excursion",
				"batch_number", b.BatchNumber,
				"temperature_c", temperatureC,
				"location", location,
			)
		}
	}
	return r, nil
}

// History returns a batch's readings, newest first.
func (s *Service) History(ctx context.Context, batchID uuid.UUID) ([]Reading, error) {
	return s.store.ListByBatch(ctx, batchID)
}

func outOfBounds(b batch.Batch, temperatureC float64) bool {
	if b.MinTemperature != nil && temperatureC < *b.MinTemperature {
		return true
	}
	if b.MaxTemperature != nil && temperatureC > *b.MaxTemperature {
		return true
	}
	return false
}
