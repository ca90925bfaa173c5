// Package ledger implements the append-only, hash-chained provenance log.
// Each entry's hash covers the previous entry's hash, so retroactive tampering
// anywhere in the chain is detectable by replay.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GenesisHash is the previous-hash value of the first chain entry.
const GenesisHash = "0"

// Entry is one link of the provenance chain. Entries are never mutated or
// deleted.
type Entry struct {
	ID            uuid.UUID
	Seq           int64
	Action        string
	EntityType    string
	EntityID      string
	ActorID       string
	ActorUsername string
	ClientIP      string
	UserAgent     string
	Payload       map[string]any
	PreviousHash  string
	CurrentHash   string
	CreatedAt     time.Time
}

// ComputeHash derives the entry hash from its chained inputs. The payload is
// part of the input so payload tampering breaks the chain, not just header
// tampering. json.Marshal sorts map keys, keeping the encoding canonical.
func ComputeHash(action, entityType, entityID, actorID string, payload map[string]any, previousHash string, createdAt time.Time) string {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		payloadJSON = nil
	}
	h := sha256.New()
	h.Write([]byte(action))
	h.Write([]byte(entityType))
	h.Write([]byte(entityID))
	h.Write([]byte(actorID))
	h.Write(payloadJSON)
	h.Write([]byte(previousHash))
	h.Write([]byte(createdAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}

// IntegrityReport is the outcome of a full chain replay.
type IntegrityReport struct {
	Valid   bool `json:"valid"`
	Entries int  `json:"entries"`
	// FirstBrokenIndex is the zero-based index of the first entry whose hash
	// or linkage failed to verify, or -1 when the chain is intact.
	FirstBrokenIndex int `json:"firstBrokenIndex"`
}
