// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and translate sentinel errors; business logic stays out.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pharmatrace/pkg/platform/middleware/auth"
	"pharmatrace/pkg/platform/middleware/metadata"
)

// Handler aggregates the domain services behind the API surface.
type Handler struct {
	verifications VerificationService
	units         UnitService
	batches       BatchStore
	recalls       RecallService
	aggregations  AggregationService
	telemetry     TelemetryService
	ledger        LedgerReader
	alerts        AlertService
	health        []HealthChecker
	logger        *slog.Logger
}

func NewHandler(
	verifications VerificationService,
	units UnitService,
	batches BatchStore,
	recalls RecallService,
	aggregations AggregationService,
	telemetry TelemetryService,
	ledgerReader LedgerReader,
	alerts AlertService,
	health []HealthChecker,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		verifications: verifications,
		units:         units,
		batches:       batches,
		recalls:       recalls,
		aggregations:  aggregations,
		telemetry:     telemetry,
		ledger:        ledgerReader,
		alerts:        alerts,
		health:        health,
		logger:        logger,
	}
}

// NewRouter wires the API. Bearer tokens are optional on read paths; the actor
// middleware only rejects tokens that are present and invalid.
func NewRouter(h *Handler, jwtSigningKey string, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(auth.ExtractActor(jwtSigningKey, h.logger))

	r.Get("/healthz", h.handleHealth)
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/verifications", h.handleVerify)
		r.Get("/verifications/stats", h.handleVerificationStats)
		r.Get("/verifications/{serialNumber}", h.handleVerificationHistory)

		r.Post("/batches", h.handleCreateBatch)
		r.Get("/batches/{id}", h.handleGetBatch)
		r.Post("/batches/{id}/readings", h.handleRecordReading)
		r.Get("/batches/{id}/readings", h.handleListReadings)

		r.Post("/units", h.handleCreateUnits)
		r.Get("/units/{id}", h.handleGetUnit)
		r.Post("/units/{id}/decommission", h.handleDecommission)
		r.Post("/units/{id}/revert-decommission", h.handleRevertDecommission)
		r.Post("/units/{id}/destroy", h.handleDestroy)

		r.Post("/recalls", h.handleInitiateRecall)
		r.Get("/recalls/{id}", h.handleGetRecall)
		r.Post("/recalls/{id}/recoveries", h.handleRecordRecovery)
		r.Post("/recalls/{id}/complete", h.handleCompleteRecall)

		r.Post("/aggregations", h.handleCreateAggregation)
		r.Get("/aggregations/{id}", h.handleGetAggregation)
		r.Post("/aggregations/{id}/disaggregate", h.handleDisaggregate)

		r.Get("/ledger", h.handleListLedger)
		r.Get("/ledger/integrity", h.handleLedgerIntegrity)

		r.Get("/alerts", h.handleListAlerts)
		r.Post("/alerts/{id}/acknowledge", h.handleAcknowledgeAlert)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.health {
		if err := check.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
