// Package unit owns the serialized-unit lifecycle. All status mutation flows
// through this package; the verification pipeline only reads unit state.
package unit

import (
	"time"

	"github.com/google/uuid"
)

// UnitStatus is the lifecycle state of a serialized unit.
type UnitStatus string

const (
	StatusActive      UnitStatus = "ACTIVE"
	StatusInTransit   UnitStatus = "IN_TRANSIT"
	StatusDispensed   UnitStatus = "DISPENSED"
	StatusQuarantined UnitStatus = "QUARANTINED"
	StatusRecalled    UnitStatus = "RECALLED"
	StatusDestroyed   UnitStatus = "DESTROYED"
)

// allowedTransitions is the single source of truth for legal status changes.
// Operations validate here instead of scattering precondition checks, so an
// illegal transition has exactly one place to fail.
var allowedTransitions = map[UnitStatus][]UnitStatus{
	StatusActive:      {StatusInTransit, StatusDispensed, StatusQuarantined, StatusRecalled},
	StatusInTransit:   {StatusActive, StatusDispensed, StatusQuarantined, StatusRecalled},
	StatusDispensed:   {StatusActive},
	StatusQuarantined: {StatusDestroyed},
	// Recalled and Destroyed are terminal.
	StatusRecalled:  {},
	StatusDestroyed: {},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to UnitStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Dispensation captures where, when, and by whom a unit left the supply chain.
// Set only while the unit is Dispensed; cleared on revert.
type Dispensation struct {
	At       time.Time
	ActorID  string
	Pharmacy string
}

// SerializedUnit is one physical saleable unit. The identity fields (serial,
// GTIN, batch, crypto-tail, carrier payload, key version) are immutable after
// creation; only status and dispensation metadata change, and only through the
// transition table. Units are destroyed logically, never deleted.
type SerializedUnit struct {
	ID                  uuid.UUID
	SerialNumber        string
	BatchID             uuid.UUID
	GTIN                string
	CryptoTail          string
	CarrierPayload      string
	KeyVersion          int
	Status              UnitStatus
	ParentAggregationID *uuid.UUID
	Dispensation        *Dispensation
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
