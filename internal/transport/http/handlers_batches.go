package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pharmatrace/internal/batch"
	"pharmatrace/pkg/platform/middleware/auth"
)

type createBatchRequest struct {
	DrugName       string    `json:"drugName"`
	Manufacturer   string    `json:"manufacturer"`
	BatchNumber    string    `json:"batchNumber"`
	ExpirationDate time.Time `json:"expirationDate"`
	MinTemperature *float64  `json:"minTemperature,omitempty"`
	MaxTemperature *float64  `json:"maxTemperature,omitempty"`
}

type batchResponse struct {
	ID             uuid.UUID `json:"id"`
	DrugName       string    `json:"drugName"`
	Manufacturer   string    `json:"manufacturer"`
	BatchNumber    string    `json:"batchNumber"`
	Status         string    `json:"status"`
	ExpirationDate time.Time `json:"expirationDate"`
	MinTemperature *float64  `json:"minTemperature,omitempty"`
	MaxTemperature *float64  `json:"maxTemperature,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toBatchResponse(b batch.Batch) batchResponse {
	return batchResponse{
		ID:             b.ID,
		DrugName:       b.DrugName,
		Manufacturer:   b.Manufacturer,
		BatchNumber:    b.BatchNumber,
		Status:         string(b.Status),
		ExpirationDate: b.ExpirationDate,
		MinTemperature: b.MinTemperature,
		MaxTemperature: b.MaxTemperature,
		CreatedAt:      b.CreatedAt,
	}
}

func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.DrugName == "" || req.Manufacturer == "" || req.BatchNumber == "" {
		writeBadRequest(w, "drugName, manufacturer and batchNumber are required")
		return
	}
	if req.ExpirationDate.IsZero() {
		writeBadRequest(w, "expirationDate is required")
		return
	}

	b := batch.Batch{
		ID:             uuid.New(),
		DrugName:       req.DrugName,
		Manufacturer:   req.Manufacturer,
		BatchNumber:    req.BatchNumber,
		Status:         batch.StatusActive,
		ExpirationDate: req.ExpirationDate,
		MinTemperature: req.MinTemperature,
		MaxTemperature: req.MaxTemperature,
		CreatedAt:      time.Now(),
	}
	if err := h.batches.Create(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchResponse(b))
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid batch id")
		return
	}
	b, err := h.batches.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(b))
}

type recordReadingRequest struct {
	TemperatureC float64 `json:"temperatureC"`
	HumidityPct  float64 `json:"humidityPercent"`
	Location     string  `json:"location,omitempty"`
}

type readingResponse struct {
	ID           uuid.UUID `json:"id"`
	BatchID      uuid.UUID `json:"batchId"`
	TemperatureC float64   `json:"temperatureC"`
	HumidityPct  float64   `json:"humidityPercent"`
	Location     string    `json:"location,omitempty"`
	RecordedBy   string    `json:"recordedBy,omitempty"`
	Excursion    bool      `json:"excursion"`
	RecordedAt   time.Time `json:"recordedAt"`
}

func (h *Handler) handleRecordReading(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid batch id")
		return
	}
	var req recordReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	reading, err := h.telemetry.Record(r.Context(), id, req.TemperatureC, req.HumidityPct, req.Location, auth.GetActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, readingResponse(reading))
}

func (h *Handler) handleListReadings(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid batch id")
		return
	}
	readings, err := h.telemetry.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]readingResponse, 0, len(readings))
	for _, reading := range readings {
		resp = append(resp, readingResponse(reading))
	}
	writeJSON(w, http.StatusOK, resp)
}
