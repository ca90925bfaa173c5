package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pharmatrace/internal/aggregation"
	"pharmatrace/pkg/platform/middleware/auth"
)

type createAggregationRequest struct {
	ParentSerialNumber string      `json:"parentSerialNumber"`
	Type               string      `json:"type"`
	ChildUnitIDs       []uuid.UUID `json:"childUnitIds"`
}

type aggregationResponse struct {
	ID                 uuid.UUID   `json:"id"`
	ParentSerialNumber string      `json:"parentSerialNumber"`
	Type               string      `json:"type"`
	BatchID            uuid.UUID   `json:"batchId"`
	ChildUnitIDs       []uuid.UUID `json:"childUnitIds"`
	Active             bool        `json:"active"`
	CreatedBy          string      `json:"createdBy,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	DisaggregatedBy    string      `json:"disaggregatedBy,omitempty"`
	DisaggregatedAt    *time.Time  `json:"disaggregatedAt,omitempty"`
}

func toAggregationResponse(a aggregation.Aggregation) aggregationResponse {
	return aggregationResponse{
		ID:                 a.ID,
		ParentSerialNumber: a.ParentSerialNumber,
		Type:               string(a.Type),
		BatchID:            a.BatchID,
		ChildUnitIDs:       a.ChildUnitIDs,
		Active:             a.Active,
		CreatedBy:          a.CreatedBy,
		CreatedAt:          a.CreatedAt,
		DisaggregatedBy:    a.DisaggregatedBy,
		DisaggregatedAt:    a.DisaggregatedAt,
	}
}

var aggregationTypes = map[string]aggregation.Type{
	string(aggregation.TypeCase):   aggregation.TypeCase,
	string(aggregation.TypePallet): aggregation.TypePallet,
}

func (h *Handler) handleCreateAggregation(w http.ResponseWriter, r *http.Request) {
	var req createAggregationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	aggType, ok := aggregationTypes[req.Type]
	if !ok {
		writeBadRequest(w, "type must be CASE or PALLET")
		return
	}
	if req.ParentSerialNumber == "" {
		writeBadRequest(w, "parentSerialNumber is required")
		return
	}
	if len(req.ChildUnitIDs) == 0 {
		writeBadRequest(w, "at least one childUnitId is required")
		return
	}

	a, err := h.aggregations.Create(r.Context(), req.ParentSerialNumber, aggType, req.ChildUnitIDs, auth.GetActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAggregationResponse(a))
}

func (h *Handler) handleGetAggregation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid aggregation id")
		return
	}
	a, err := h.aggregations.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregationResponse(a))
}

func (h *Handler) handleDisaggregate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid aggregation id")
		return
	}
	a, err := h.aggregations.Disaggregate(r.Context(), id, auth.GetActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregationResponse(a))
}
