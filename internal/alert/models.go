package alert

import (
	"time"

	"github.com/google/uuid"
)

// Severity grades operator attention. High severities page; mediums queue.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Alert types raised by the verification engine and its collaborators.
const (
	TypeCounterfeitDetected   = "COUNTERFEIT_DETECTED"
	TypeDuplicateScan         = "DUPLICATE_SCAN"
	TypeDistanceTimeCollision = "DISTANCE_TIME_COLLISION"
	TypeRecallInitiated       = "RECALL_INITIATED"
	TypeTemperatureExcursion  = "TEMPERATURE_EXCURSION"
)

// Alert is an operator-facing security or safety signal. Producers raise
// fire-and-forget; operators acknowledge.
type Alert struct {
	ID                uuid.UUID
	Type              string
	Severity          Severity
	Message           string
	RelatedEntityType string
	RelatedEntityID   *uuid.UUID
	Acknowledged      bool
	AcknowledgedBy    string
	AcknowledgedAt    *time.Time
	CreatedAt         time.Time
}
