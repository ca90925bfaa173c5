package httptransport

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/ledger"
)

type ledgerEntryResponse struct {
	ID            uuid.UUID      `json:"id"`
	Seq           int64          `json:"seq"`
	Action        string         `json:"action"`
	EntityType    string         `json:"entityType"`
	EntityID      string         `json:"entityId"`
	ActorID       string         `json:"actorId,omitempty"`
	ActorUsername string         `json:"actorUsername,omitempty"`
	ClientIP      string         `json:"clientIp,omitempty"`
	UserAgent     string         `json:"userAgent,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	PreviousHash  string         `json:"previousHash"`
	CurrentHash   string         `json:"currentHash"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func toLedgerEntryResponse(e ledger.Entry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:            e.ID,
		Seq:           e.Seq,
		Action:        e.Action,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		ActorID:       e.ActorID,
		ActorUsername: e.ActorUsername,
		ClientIP:      e.ClientIP,
		UserAgent:     e.UserAgent,
		Payload:       e.Payload,
		PreviousHash:  e.PreviousHash,
		CurrentHash:   e.CurrentHash,
		CreatedAt:     e.CreatedAt,
	}
}

// handleListLedger returns the full chain, or one entity's trail when
// entityType and entityId are given.
func (h *Handler) handleListLedger(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entityType")
	entityID := r.URL.Query().Get("entityId")

	var (
		entries []ledger.Entry
		err     error
	)
	switch {
	case entityType != "" && entityID != "":
		entries, err = h.ledger.EntriesForEntity(r.Context(), entityType, entityID)
	case entityType == "" && entityID == "":
		entries, err = h.ledger.Entries(r.Context())
	default:
		writeBadRequest(w, "entityType and entityId must be given together")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toLedgerEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLedgerIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.CheckIntegrity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":            report.Valid,
		"entries":          report.Entries,
		"firstBrokenIndex": report.FirstBrokenIndex,
	})
}
