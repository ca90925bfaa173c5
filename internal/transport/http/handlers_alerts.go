package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pharmatrace/internal/alert"
	"pharmatrace/pkg/platform/middleware/auth"
)

type alertResponse struct {
	ID                uuid.UUID  `json:"id"`
	Type              string     `json:"type"`
	Severity          string     `json:"severity"`
	Message           string     `json:"message"`
	RelatedEntityType string     `json:"relatedEntityType,omitempty"`
	RelatedEntityID   *uuid.UUID `json:"relatedEntityId,omitempty"`
	Acknowledged      bool       `json:"acknowledged"`
	AcknowledgedBy    string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt    *time.Time `json:"acknowledgedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func toAlertResponse(a alert.Alert) alertResponse {
	return alertResponse{
		ID:                a.ID,
		Type:              a.Type,
		Severity:          string(a.Severity),
		Message:           a.Message,
		RelatedEntityType: a.RelatedEntityType,
		RelatedEntityID:   a.RelatedEntityID,
		Acknowledged:      a.Acknowledged,
		AcknowledgedBy:    a.AcknowledgedBy,
		AcknowledgedAt:    a.AcknowledgedAt,
		CreatedAt:         a.CreatedAt,
	}
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.Active(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, toAlertResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid alert id")
		return
	}
	a, err := h.alerts.Acknowledge(r.Context(), id, auth.GetActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertResponse(a))
}
