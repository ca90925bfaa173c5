// Package verification implements the scan classification pipeline: it
// authenticates a serialized unit, classifies the attempt through a fixed
// branch order, and records every attempt whatever the outcome.
package verification

import (
	"time"

	"github.com/google/uuid"
)

// Result is the closed set of classification outcomes. Every pipeline branch
// maps to exactly one of these; there is no free-form classification.
type Result string

const (
	ResultValid            Result = "VALID"
	ResultInvalid          Result = "INVALID"
	ResultRecalled         Result = "RECALLED"
	ResultExpired          Result = "EXPIRED"
	ResultQuarantined      Result = "QUARANTINED"
	ResultAlreadyDispensed Result = "ALREADY_DISPENSED"
	ResultNotFound         Result = "NOT_FOUND"
)

// Results lists every outcome variant; tests use it to stay exhaustive.
var Results = []Result{
	ResultValid, ResultInvalid, ResultRecalled, ResultExpired,
	ResultQuarantined, ResultAlreadyDispensed, ResultNotFound,
}

// IsValid reports whether the result clears the unit for dispensing.
func (r Result) IsValid() bool { return r == ResultValid }

// Request is one verification attempt as it enters the pipeline.
type Request struct {
	SerialNumber string
	Latitude     *float64
	Longitude    *float64
	Location     string
	DeviceID     string
	ActorID      string
}

// Outcome is the immutable record of one verification attempt. One is written
// per attempt, whatever branch the pipeline took.
type Outcome struct {
	ID           uuid.UUID
	SerialNumber string
	// UnitID is nil when the serial resolved to no unit.
	UnitID              *uuid.UUID
	Result              Result
	IsValid             bool
	Message             string
	DrugName            string
	Manufacturer        string
	BatchNumber         string
	ExpirationDate      *time.Time
	Latitude            *float64
	Longitude           *float64
	Location            string
	DeviceID            string
	ActorID             string
	Warnings            []string
	PossibleCounterfeit bool
	ResponseTime        time.Duration
	VerifiedAt          time.Time
}

// Stats aggregates verification history for dashboards.
type Stats struct {
	Total          int64
	Valid          int64
	Invalid        int64
	AverageLatency time.Duration
}
