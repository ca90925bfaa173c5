// Package telemetry ingests cold-chain temperature readings and flags
// excursions outside a batch's storage bounds.
package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Reading is one temperature measurement reported against a batch.
type Reading struct {
	ID           uuid.UUID
	BatchID      uuid.UUID
	TemperatureC float64
	HumidityPct  float64
	Location     string
	RecordedBy   string
	// Excursion is set when the reading fell outside the batch's configured
	// storage bounds at ingest time.
	Excursion  bool
	RecordedAt time.Time
}
