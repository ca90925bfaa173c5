package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pharmatrace/internal/verification"
	"pharmatrace/pkg/platform/middleware/auth"
)

type verifyRequest struct {
	SerialNumber string   `json:"serialNumber"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Location     string   `json:"location,omitempty"`
	DeviceID     string   `json:"deviceId,omitempty"`
}

type outcomeResponse struct {
	ID                  uuid.UUID  `json:"id"`
	SerialNumber        string     `json:"serialNumber"`
	UnitID              *uuid.UUID `json:"unitId,omitempty"`
	Result              string     `json:"result"`
	Valid               bool       `json:"valid"`
	Message             string     `json:"message"`
	DrugName            string     `json:"drugName,omitempty"`
	Manufacturer        string     `json:"manufacturer,omitempty"`
	BatchNumber         string     `json:"batchNumber,omitempty"`
	ExpirationDate      *time.Time `json:"expirationDate,omitempty"`
	Warnings            []string   `json:"warnings,omitempty"`
	PossibleCounterfeit bool       `json:"possibleCounterfeit"`
	ResponseTimeMs      int64      `json:"responseTimeMs"`
	VerifiedAt          time.Time  `json:"verifiedAt"`
}

func toOutcomeResponse(o verification.Outcome) outcomeResponse {
	return outcomeResponse{
		ID:                  o.ID,
		SerialNumber:        o.SerialNumber,
		UnitID:              o.UnitID,
		Result:              string(o.Result),
		Valid:               o.IsValid,
		Message:             o.Message,
		DrugName:            o.DrugName,
		Manufacturer:        o.Manufacturer,
		BatchNumber:         o.BatchNumber,
		ExpirationDate:      o.ExpirationDate,
		Warnings:            o.Warnings,
		PossibleCounterfeit: o.PossibleCounterfeit,
		ResponseTimeMs:      o.ResponseTime.Milliseconds(),
		VerifiedAt:          o.VerifiedAt,
	}
}

// handleVerify classifies one scan. Business rejections are 200 responses
// carrying the classification; only infrastructure failure is an error status.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.SerialNumber == "" {
		writeBadRequest(w, "serialNumber is required")
		return
	}

	out, err := h.verifications.Verify(r.Context(), verification.Request{
		SerialNumber: req.SerialNumber,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Location:     req.Location,
		DeviceID:     req.DeviceID,
		ActorID:      auth.GetActorID(r.Context()),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "verification failed", "serial_number", req.SerialNumber, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (h *Handler) handleVerificationHistory(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serialNumber")
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "since must be RFC 3339")
			return
		}
		since = parsed
	}

	outcomes, err := h.verifications.History(r.Context(), serial, since)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]outcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		resp = append(resp, toOutcomeResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVerificationStats(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, 0, -1)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "since must be RFC 3339")
			return
		}
		since = parsed
	}

	stats, err := h.verifications.Stats(r.Context(), since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":            stats.Total,
		"valid":            stats.Valid,
		"invalid":          stats.Invalid,
		"averageLatencyMs": stats.AverageLatency.Milliseconds(),
	})
}
