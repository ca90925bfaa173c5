package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pharmatrace/internal/unit"
	"pharmatrace/pkg/platform/middleware/auth"
)

type createUnitsRequest struct {
	BatchID uuid.UUID `json:"batchId"`
	GTIN    string    `json:"gtin"`
	// Quantity above one serializes in bulk; zero defaults to one.
	Quantity     int    `json:"quantity,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
}

type unitResponse struct {
	ID                  uuid.UUID  `json:"id"`
	SerialNumber        string     `json:"serialNumber"`
	BatchID             uuid.UUID  `json:"batchId"`
	GTIN                string     `json:"gtin"`
	CryptoTail          string     `json:"cryptoTail"`
	CarrierPayload      string     `json:"carrierPayload"`
	KeyVersion          int        `json:"keyVersion"`
	Status              string     `json:"status"`
	ParentAggregationID *uuid.UUID `json:"parentAggregationId,omitempty"`
	DispensedAt         *time.Time `json:"dispensedAt,omitempty"`
	Pharmacy            string     `json:"pharmacy,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func toUnitResponse(u unit.SerializedUnit) unitResponse {
	resp := unitResponse{
		ID:                  u.ID,
		SerialNumber:        u.SerialNumber,
		BatchID:             u.BatchID,
		GTIN:                u.GTIN,
		CryptoTail:          u.CryptoTail,
		CarrierPayload:      u.CarrierPayload,
		KeyVersion:          u.KeyVersion,
		Status:              string(u.Status),
		ParentAggregationID: u.ParentAggregationID,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
	if u.Dispensation != nil {
		at := u.Dispensation.At
		resp.DispensedAt = &at
		resp.Pharmacy = u.Dispensation.Pharmacy
	}
	return resp
}

func (h *Handler) handleCreateUnits(w http.ResponseWriter, r *http.Request) {
	var req createUnitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	actorID := auth.GetActorID(r.Context())

	if req.Quantity > 1 {
		units, err := h.units.BulkCreate(r.Context(), req.BatchID, req.GTIN, req.Quantity, actorID)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := make([]unitResponse, 0, len(units))
		for _, u := range units {
			resp = append(resp, toUnitResponse(u))
		}
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	u, err := h.units.Create(r.Context(), unit.CreateRequest{
		SerialNumber: req.SerialNumber,
		BatchID:      req.BatchID,
		GTIN:         req.GTIN,
	}, actorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUnitResponse(u))
}

func (h *Handler) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid unit id")
		return
	}
	u, err := h.units.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUnitResponse(u))
}

func (h *Handler) handleDecommission(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid unit id")
		return
	}
	var req struct {
		Pharmacy string `json:"pharmacy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	u, err := h.units.Decommission(r.Context(), id, auth.GetActorID(r.Context()), req.Pharmacy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUnitResponse(u))
}

func (h *Handler) handleRevertDecommission(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid unit id")
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	u, err := h.units.RevertDecommission(r.Context(), id, auth.GetActorID(r.Context()), req.Reason)
	if err != nil {
		if errors.Is(err, unit.ErrReasonRequired) {
			writeBadRequest(w, err.Error())
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUnitResponse(u))
}

func (h *Handler) handleDestroy(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid unit id")
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	u, err := h.units.Destroy(r.Context(), id, auth.GetActorID(r.Context()), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUnitResponse(u))
}
