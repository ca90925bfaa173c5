package batch

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus is the manufacturing lifecycle of a batch. Serialization is only
// allowed against active batches.
type BatchStatus string

const (
	StatusActive    BatchStatus = "ACTIVE"
	StatusInactive  BatchStatus = "INACTIVE"
	StatusExhausted BatchStatus = "EXHAUSTED"
)

// Batch is the production lot a serialized unit belongs to. The verification
// engine only reads batches; registration workflows own them.
type Batch struct {
	ID             uuid.UUID
	DrugName       string
	Manufacturer   string
	BatchNumber    string
	Status         BatchStatus
	ExpirationDate time.Time
	// Storage temperature bounds for the drug, used by the telemetry
	// excursion check. Nil when the drug has no cold-chain requirement.
	MinTemperature *float64
	MaxTemperature *float64
	CreatedAt      time.Time
}
