package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pharmatrace/internal/aggregation"
	"pharmatrace/internal/alert"
	"pharmatrace/internal/batch"
	"pharmatrace/internal/ledger"
	"pharmatrace/internal/platform/config"
	"pharmatrace/internal/recall"
	"pharmatrace/internal/signing"
	"pharmatrace/internal/telemetry"
	"pharmatrace/internal/transition"
	"pharmatrace/internal/unit"
	"pharmatrace/internal/verification"
	"pharmatrace/internal/verification/scanwindow"
)

// RouterSuite exercises the API against fully wired in-memory services.
type RouterSuite struct {
	suite.Suite

	router  http.Handler
	batchID uuid.UUID
	unitSvc *unit.Service
	alerts  *alert.Service
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func (s *RouterSuite) SetupTest() {
	unitStore := unit.NewInMemoryStore()
	batches := batch.NewInMemoryStore()
	ledgerRec := ledger.NewRecorder(ledger.NewInMemoryStore(), nil, nil)

	signer, err := signing.NewHMACSigner("transport-test-master-key-material", 1)
	s.Require().NoError(err)

	s.alerts = alert.NewService(alert.NewInMemoryStore(), nil, nil)
	s.unitSvc = unit.NewService(
		unitStore, batches, signer,
		transition.NewRecorder(transition.NewInMemoryStore(), nil, nil),
		ledgerRec, nil, nil,
	)
	recalls := recall.NewService(recall.NewInMemoryStore(), batches, s.unitSvc, unitStore, s.alerts, ledgerRec, nil)
	aggregations := aggregation.NewService(aggregation.NewInMemoryStore(), unitStore, ledgerRec, nil, nil)
	telemetrySvc := telemetry.NewService(telemetry.NewInMemoryStore(), batches, s.alerts, ledgerRec, nil)

	cfg := config.VerificationConfig{
		DuplicateScanLimit:  3,
		DuplicateScanWindow: time.Hour,
		MinTimeBetweenScans: 30 * time.Minute,
		MaxDistanceKm:       500,
		LookupTimeout:       5 * time.Second,
	}
	pipeline := verification.NewService(
		unitStore, batches, recalls, signer,
		verification.NewMemoryHistoryStore(), scanwindow.NewMemoryStore(), s.alerts, ledgerRec,
		cfg, nil, nil, nil,
	)

	handler := NewHandler(pipeline, s.unitSvc, batches, recalls, aggregations, telemetrySvc, ledgerRec, s.alerts, nil, testLogger())
	s.router = NewRouter(handler, "transport-test-jwt-key", nil)

	s.batchID = uuid.New()
	s.Require().NoError(batches.Create(context.Background(), batch.Batch{
		ID:             s.batchID,
		DrugName:       "Lisinopril 10mg",
		Manufacturer:   "PharmaCorp",
		BatchNumber:    "LOT-2027-007",
		Status:         batch.StatusActive,
		ExpirationDate: time.Now().AddDate(1, 0, 0),
		CreatedAt:      time.Now(),
	}))
}

func (s *RouterSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder, into any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(into))
}

func (s *RouterSuite) createUnit() unitResponse {
	rec := s.do(http.MethodPost, "/api/v1/units", map[string]any{
		"batchId": s.batchID,
		"gtin":    "01234567890123",
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var resp unitResponse
	s.decode(rec, &resp)
	return resp
}

func (s *RouterSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestCreateAndVerifyUnit() {
	u := s.createUnit()
	s.NotEmpty(u.SerialNumber)
	s.NotEmpty(u.CryptoTail)
	s.Equal("ACTIVE", u.Status)

	rec := s.do(http.MethodPost, "/api/v1/verifications", map[string]any{
		"serialNumber": u.SerialNumber,
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	var out outcomeResponse
	s.decode(rec, &out)
	s.Equal("VALID", out.Result)
	s.True(out.Valid)
	s.Equal("Lisinopril 10mg", out.DrugName)
}

func (s *RouterSuite) TestVerifyUnknownSerialIsStillOK() {
	rec := s.do(http.MethodPost, "/api/v1/verifications", map[string]any{
		"serialNumber": "SN000000000000000000",
	})
	// Classifications are payload, not status codes.
	s.Require().Equal(http.StatusOK, rec.Code)

	var out outcomeResponse
	s.decode(rec, &out)
	s.Equal("NOT_FOUND", out.Result)
	s.False(out.Valid)
}

func (s *RouterSuite) TestVerifyRequiresSerial() {
	rec := s.do(http.MethodPost, "/api/v1/verifications", map[string]any{})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterSuite) TestBulkCreateUnits() {
	rec := s.do(http.MethodPost, "/api/v1/units", map[string]any{
		"batchId":  s.batchID,
		"gtin":     "01234567890123",
		"quantity": 5,
	})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var resp []unitResponse
	s.decode(rec, &resp)
	s.Len(resp, 5)
}

func (s *RouterSuite) TestUnknownUnitIs404() {
	rec := s.do(http.MethodGet, "/api/v1/units/"+uuid.NewString(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterSuite) TestDecommissionLifecycle() {
	u := s.createUnit()
	path := fmt.Sprintf("/api/v1/units/%s/decommission", u.ID)

	rec := s.do(http.MethodPost, path, map[string]any{"pharmacy": "Main St Pharmacy"})
	s.Require().Equal(http.StatusOK, rec.Code)
	var dispensed unitResponse
	s.decode(rec, &dispensed)
	s.Equal("DISPENSED", dispensed.Status)
	s.Equal("Main St Pharmacy", dispensed.Pharmacy)

	s.Run("double decommission conflicts", func() {
		rec := s.do(http.MethodPost, path, map[string]any{"pharmacy": "Main St Pharmacy"})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("revert requires a reason", func() {
		rec := s.do(http.MethodPost, fmt.Sprintf("/api/v1/units/%s/revert-decommission", u.ID), map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("revert restores the unit", func() {
		rec := s.do(http.MethodPost, fmt.Sprintf("/api/v1/units/%s/revert-decommission", u.ID),
			map[string]any{"reason": "scanned in error"})
		s.Require().Equal(http.StatusOK, rec.Code)
		var reverted unitResponse
		s.decode(rec, &reverted)
		s.Equal("ACTIVE", reverted.Status)
		s.Empty(reverted.Pharmacy)
	})
}

func (s *RouterSuite) TestRecallWorkflow() {
	u := s.createUnit()

	rec := s.do(http.MethodPost, "/api/v1/recalls", map[string]any{
		"batchId":        s.batchID,
		"classification": "CLASS_I",
		"reason":         "sterility failure",
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created recallResponse
	s.decode(rec, &created)
	s.Equal("ACTIVE", created.Status)
	s.Equal(int64(1), created.AffectedUnits)

	s.Run("verification now classifies recalled", func() {
		rec := s.do(http.MethodPost, "/api/v1/verifications", map[string]any{"serialNumber": u.SerialNumber})
		s.Require().Equal(http.StatusOK, rec.Code)
		var out outcomeResponse
		s.decode(rec, &out)
		s.Equal("RECALLED", out.Result)
	})

	s.Run("recovery and completion", func() {
		rec := s.do(http.MethodPost, fmt.Sprintf("/api/v1/recalls/%s/recoveries", created.ID),
			map[string]any{"unitId": u.ID})
		s.Require().Equal(http.StatusOK, rec.Code)
		var updated recallResponse
		s.decode(rec, &updated)
		s.Equal(int64(1), updated.RecoveredUnits)
		s.InDelta(100.0, updated.Effectiveness, 0.001)

		rec = s.do(http.MethodPost, fmt.Sprintf("/api/v1/recalls/%s/complete", created.ID), nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.decode(rec, &updated)
		s.Equal("COMPLETED", updated.Status)
	})

	s.Run("completed recall frees the batch for a new one", func() {
		rec := s.do(http.MethodPost, "/api/v1/recalls", map[string]any{
			"batchId":        s.batchID,
			"classification": "CLASS_II",
			"reason":         "follow-up labeling defect",
		})
		s.Equal(http.StatusCreated, rec.Code)
	})
}

func (s *RouterSuite) TestAggregationWorkflow() {
	first := s.createUnit()
	second := s.createUnit()

	rec := s.do(http.MethodPost, "/api/v1/aggregations", map[string]any{
		"parentSerialNumber": "CASE-2027-001",
		"type":               "CASE",
		"childUnitIds":       []string{first.ID.String(), second.ID.String()},
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created aggregationResponse
	s.decode(rec, &created)
	s.True(created.Active)
	s.Len(created.ChildUnitIDs, 2)

	s.Run("children carry the aggregation id", func() {
		unitRec := s.do(http.MethodGet, "/api/v1/units/"+first.ID.String(), nil)
		s.Require().Equal(http.StatusOK, unitRec.Code)
		var u unitResponse
		s.decode(unitRec, &u)
		s.Require().NotNil(u.ParentAggregationID)
		s.Equal(created.ID, *u.ParentAggregationID)
	})

	s.Run("aggregated child cannot join a second case", func() {
		again := s.do(http.MethodPost, "/api/v1/aggregations", map[string]any{
			"parentSerialNumber": "CASE-2027-002",
			"type":               "CASE",
			"childUnitIds":       []string{first.ID.String()},
		})
		s.Equal(http.StatusConflict, again.Code)
	})

	s.Run("disaggregate releases the children", func() {
		rel := s.do(http.MethodPost, fmt.Sprintf("/api/v1/aggregations/%s/disaggregate", created.ID), nil)
		s.Require().Equal(http.StatusOK, rel.Code)
		var released aggregationResponse
		s.decode(rel, &released)
		s.False(released.Active)

		unitRec := s.do(http.MethodGet, "/api/v1/units/"+first.ID.String(), nil)
		var u unitResponse
		s.decode(unitRec, &u)
		s.Nil(u.ParentAggregationID)
	})
}

func (s *RouterSuite) TestAggregationRejectsBadType() {
	u := s.createUnit()
	rec := s.do(http.MethodPost, "/api/v1/aggregations", map[string]any{
		"parentSerialNumber": "BOX-001",
		"type":               "BOX",
		"childUnitIds":       []string{u.ID.String()},
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterSuite) TestRecallRejectsBadClassification() {
	rec := s.do(http.MethodPost, "/api/v1/recalls", map[string]any{
		"batchId":        s.batchID,
		"classification": "CLASS_IV",
		"reason":         "whatever",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterSuite) TestBatchEndpoints() {
	rec := s.do(http.MethodPost, "/api/v1/batches", map[string]any{
		"drugName":       "Insulin Glargine",
		"manufacturer":   "PharmaCorp",
		"batchNumber":    "LOT-COLD-009",
		"expirationDate": time.Now().AddDate(1, 0, 0).Format(time.RFC3339),
		"minTemperature": 2.0,
		"maxTemperature": 8.0,
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created batchResponse
	s.decode(rec, &created)
	s.Equal("ACTIVE", created.Status)

	s.Run("excursion reading flags and alerts", func() {
		rec := s.do(http.MethodPost, fmt.Sprintf("/api/v1/batches/%s/readings", created.ID),
			map[string]any{"temperatureC": 14.2, "humidityPercent": 58.0, "location": "Truck 7"})
		s.Require().Equal(http.StatusCreated, rec.Code)
		var reading readingResponse
		s.decode(rec, &reading)
		s.True(reading.Excursion)

		alertsRec := s.do(http.MethodGet, "/api/v1/alerts", nil)
		s.Require().Equal(http.StatusOK, alertsRec.Code)
		var active []alertResponse
		s.decode(alertsRec, &active)
		s.Require().NotEmpty(active)
		s.Equal("TEMPERATURE_EXCURSION", active[len(active)-1].Type)
	})
}

func (s *RouterSuite) TestAcknowledgeAlert() {
	s.alerts.Raise(context.Background(), alert.TypeDuplicateScan, alert.SeverityMedium, "test alert", "", nil)
	active, err := s.alerts.Active(context.Background())
	s.Require().NoError(err)
	s.Require().Len(active, 1)

	rec := s.do(http.MethodPost, fmt.Sprintf("/api/v1/alerts/%s/acknowledge", active[0].ID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var acked alertResponse
	s.decode(rec, &acked)
	s.True(acked.Acknowledged)

	s.Run("double acknowledge conflicts", func() {
		rec := s.do(http.MethodPost, fmt.Sprintf("/api/v1/alerts/%s/acknowledge", active[0].ID), nil)
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *RouterSuite) TestLedgerEndpoints() {
	u := s.createUnit()

	rec := s.do(http.MethodGet, "/api/v1/ledger?entityType=SerializedUnit&entityId="+u.ID.String(), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var entries []ledgerEntryResponse
	s.decode(rec, &entries)
	s.Require().NotEmpty(entries)
	s.Equal("UNIT_SERIALIZED", entries[0].Action)

	s.Run("integrity report", func() {
		rec := s.do(http.MethodGet, "/api/v1/ledger/integrity", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var report map[string]any
		s.decode(rec, &report)
		s.Equal(true, report["valid"])
	})

	s.Run("half-specified entity filter is rejected", func() {
		rec := s.do(http.MethodGet, "/api/v1/ledger?entityType=SerializedUnit", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
