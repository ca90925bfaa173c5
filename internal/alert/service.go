// Package alert persists operator-facing security signals and optionally
// mirrors them onto a Kafka topic for downstream monitoring.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/sentinel"
)

// Publisher mirrors alerts to an external stream. Optional; failures never
// reach producers.
type Publisher interface {
	Publish(ctx context.Context, a Alert)
}

// Service is the alert sink the verification pipeline, recall workflow, and
// telemetry checks raise into. Raise is fire-and-forget: producers classify
// and move on regardless of sink health.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

func NewService(store Store, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, publisher: publisher, logger: logger}
}

// Raise records an alert. Errors are logged, never returned; an alert sink
// outage must not change a verification classification.
func (s *Service) Raise(ctx context.Context, alertType string, severity Severity, message, relatedEntityType string, relatedEntityID *uuid.UUID) {
	a := Alert{
		ID:                uuid.New(),
		Type:              alertType,
		Severity:          severity,
		Message:           message,
		RelatedEntityType: relatedEntityType,
		RelatedEntityID:   relatedEntityID,
		CreatedAt:         time.Now(),
	}

	if err := s.store.Save(ctx, a); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to store alert", "type", alertType, "error", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "alert raised",
			"type", alertType,
			"severity", severity,
			"message", message,
		)
	}
	if s.publisher != nil {
		s.publisher.Publish(ctx, a)
	}
}

// Acknowledge marks an alert handled by an operator. Double-acknowledgement is
// a conflict.
func (s *Service) Acknowledge(ctx context.Context, id uuid.UUID, actorID string) (Alert, error) {
	a, err := s.store.Acknowledge(ctx, id, actorID)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrConflict) {
		return Alert{}, err
	}
	if err != nil {
		return Alert{}, fmt.Errorf("acknowledge alert: %w", err)
	}
	return a, nil
}

// Active returns the unacknowledged alerts in creation order.
func (s *Service) Active(ctx context.Context) ([]Alert, error) {
	return s.store.ListUnacknowledged(ctx)
}
