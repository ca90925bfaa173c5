package transition

import (
	"time"

	"github.com/google/uuid"
)

// EntityType names the kinds of entities whose lifecycle is audited.
type EntityType string

const (
	EntityDrug           EntityType = "DRUG"
	EntityBatch          EntityType = "BATCH"
	EntitySerializedUnit EntityType = "SERIALIZED_UNIT"
)

// Record captures one status transition. Append-only; lifecycle audit stays
// queryable independently of the hash-chained ledger.
type Record struct {
	ID            uuid.UUID
	EntityType    EntityType
	EntityID      uuid.UUID
	FromStatus    string
	ToStatus      string
	Reason        string
	ActorID       string
	ActorUsername string
	CreatedAt     time.Time
}
