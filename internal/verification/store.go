package verification

import (
	"context"
	"time"
)

// HistoryStore persists verification outcomes. Appends are immutable: the
// pipeline never updates or deletes a recorded attempt.
type HistoryStore interface {
	Append(ctx context.Context, outcome Outcome) error
	// ListBySerialSince returns outcomes for one serial recorded at or after
	// since, newest first.
	ListBySerialSince(ctx context.Context, serialNumber string, since time.Time) ([]Outcome, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
}
