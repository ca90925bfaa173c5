package recall

import (
	"time"

	"github.com/google/uuid"
)

// Classification grades recall severity per regulatory convention: Class I is
// the most serious (reasonable probability of serious harm).
type Classification string

const (
	ClassI   Classification = "CLASS_I"
	ClassII  Classification = "CLASS_II"
	ClassIII Classification = "CLASS_III"
)

type RecallStatus string

const (
	StatusActive    RecallStatus = "ACTIVE"
	StatusCompleted RecallStatus = "COMPLETED"
)

// Recall freezes a batch: its active units are quarantined in bulk and remain
// blocked from dispensing until recovered (destroyed) or the recall completes.
type Recall struct {
	ID             uuid.UUID
	BatchID        uuid.UUID
	Classification Classification
	Status         RecallStatus
	Reason         string
	AffectedUnits  int64
	RecoveredUnits int64
	// Effectiveness is the percentage of affected units recovered so far.
	Effectiveness float64
	InitiatedBy   string
	InitiatedAt   time.Time
	ClosedBy      string
	ClosedAt      *time.Time
}
