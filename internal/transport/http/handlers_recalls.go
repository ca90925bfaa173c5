package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pharmatrace/internal/recall"
	"pharmatrace/pkg/platform/middleware/auth"
)

type initiateRecallRequest struct {
	BatchID        uuid.UUID `json:"batchId"`
	Classification string    `json:"classification"`
	Reason         string    `json:"reason"`
}

type recallResponse struct {
	ID             uuid.UUID  `json:"id"`
	BatchID        uuid.UUID  `json:"batchId"`
	Classification string     `json:"classification"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason"`
	AffectedUnits  int64      `json:"affectedUnits"`
	RecoveredUnits int64      `json:"recoveredUnits"`
	Effectiveness  float64    `json:"effectiveness"`
	InitiatedBy    string     `json:"initiatedBy,omitempty"`
	InitiatedAt    time.Time  `json:"initiatedAt"`
	ClosedBy       string     `json:"closedBy,omitempty"`
	ClosedAt       *time.Time `json:"closedAt,omitempty"`
}

func toRecallResponse(r recall.Recall) recallResponse {
	return recallResponse{
		ID:             r.ID,
		BatchID:        r.BatchID,
		Classification: string(r.Classification),
		Status:         string(r.Status),
		Reason:         r.Reason,
		AffectedUnits:  r.AffectedUnits,
		RecoveredUnits: r.RecoveredUnits,
		Effectiveness:  r.Effectiveness,
		InitiatedBy:    r.InitiatedBy,
		InitiatedAt:    r.InitiatedAt,
		ClosedBy:       r.ClosedBy,
		ClosedAt:       r.ClosedAt,
	}
}

var recallClassifications = map[string]recall.Classification{
	string(recall.ClassI):   recall.ClassI,
	string(recall.ClassII):  recall.ClassII,
	string(recall.ClassIII): recall.ClassIII,
}

func (h *Handler) handleInitiateRecall(w http.ResponseWriter, r *http.Request) {
	var req initiateRecallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	classification, ok := recallClassifications[req.Classification]
	if !ok {
		writeBadRequest(w, "classification must be CLASS_I, CLASS_II or CLASS_III")
		return
	}
	if req.Reason == "" {
		writeBadRequest(w, "reason is required")
		return
	}

	rec, err := h.recalls.Initiate(r.Context(), req.BatchID, classification, req.Reason, auth.GetActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecallResponse(rec))
}

func (h *Handler) handleGetRecall(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid recall id")
		return
	}
	rec, err := h.recalls.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecallResponse(rec))
}

func (h *Handler) handleRecordRecovery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid recall id")
		return
	}
	var req struct {
		UnitID uuid.UUID `json:"unitId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.UnitID == uuid.Nil {
		writeBadRequest(w, "unitId is required")
		return
	}

	rec, err := h.recalls.RecordRecovery(r.Context(), id, req.UnitID, auth.GetActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecallResponse(rec))
}

func (h *Handler) handleCompleteRecall(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid recall id")
		return
	}
	rec, err := h.recalls.Complete(r.Context(), id, auth.GetActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecallResponse(rec))
}
