package aggregation

import (
	"time"

	"github.com/google/uuid"
)

// Type is the packaging level an aggregation represents. Children are always
// individual serialized units.
type Type string

const (
	TypeCase   Type = "CASE"
	TypePallet Type = "PALLET"
)

// Aggregation groups serialized units under one parent container. While
// active, each child unit carries the aggregation's id; disaggregating
// releases the children back to standalone circulation.
type Aggregation struct {
	ID                 uuid.UUID
	ParentSerialNumber string
	Type               Type
	BatchID            uuid.UUID
	ChildUnitIDs       []uuid.UUID
	Active             bool
	CreatedBy          string
	CreatedAt          time.Time
	DisaggregatedBy    string
	DisaggregatedAt    *time.Time
}
