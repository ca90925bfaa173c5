package verification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pharmatrace/internal/alert"
	"pharmatrace/internal/batch"
	"pharmatrace/internal/ledger"
	"pharmatrace/internal/platform/config"
	"pharmatrace/internal/recall"
	"pharmatrace/internal/signing"
	"pharmatrace/internal/transition"
	"pharmatrace/internal/unit"
	"pharmatrace/internal/verification/scanwindow"
)

// PipelineSuite wires the full verification pipeline against in-memory stores
// so classification is exercised end to end, units created through the real
// serialization path.
type PipelineSuite struct {
	suite.Suite

	unitStore   *unit.InMemoryStore
	batches     *batch.InMemoryStore
	ledgerStore *ledger.InMemoryStore
	alertStore  *alert.InMemoryStore
	recallStore *recall.InMemoryStore
	history     *MemoryHistoryStore

	alerts   *alert.Service
	unitSvc  *unit.Service
	recalls  *recall.Service
	pipeline *Service

	batchID uuid.UUID
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.unitStore = unit.NewInMemoryStore()
	s.batches = batch.NewInMemoryStore()
	s.ledgerStore = ledger.NewInMemoryStore()
	s.alertStore = alert.NewInMemoryStore()
	s.recallStore = recall.NewInMemoryStore()
	s.history = NewMemoryHistoryStore()

	signer, err := signing.NewHMACSigner("pipeline-test-master-key-material", 1)
	s.Require().NoError(err)

	ledgerRec := ledger.NewRecorder(s.ledgerStore, nil, nil)
	s.alerts = alert.NewService(s.alertStore, nil, nil)
	s.unitSvc = unit.NewService(
		s.unitStore, s.batches, signer,
		transition.NewRecorder(transition.NewInMemoryStore(), nil, nil),
		ledgerRec, nil, nil,
	)
	s.recalls = recall.NewService(s.recallStore, s.batches, s.unitSvc, s.unitStore, s.alerts, ledgerRec, nil)

	cfg := config.VerificationConfig{
		DuplicateScanLimit:  3,
		DuplicateScanWindow: time.Hour,
		MinTimeBetweenScans: 30 * time.Minute,
		MaxDistanceKm:       500,
		LookupTimeout:       5 * time.Second,
	}
	s.pipeline = NewService(
		s.unitStore, s.batches, s.recalls, signer,
		s.history, scanwindow.NewMemoryStore(), s.alerts, ledgerRec,
		cfg, nil, nil, nil,
	)

	s.batchID = s.seedBatch(time.Now().AddDate(1, 0, 0))
}

func (s *PipelineSuite) seedBatch(expiration time.Time) uuid.UUID {
	id := uuid.New()
	s.Require().NoError(s.batches.Create(context.Background(), batch.Batch{
		ID:             id,
		DrugName:       "Atorvastatin 20mg",
		Manufacturer:   "PharmaCorp",
		BatchNumber:    "LOT-" + id.String()[:8],
		Status:         batch.StatusActive,
		ExpirationDate: expiration,
		CreatedAt:      time.Now(),
	}))
	return id
}

func (s *PipelineSuite) createUnit(batchID uuid.UUID) unit.SerializedUnit {
	u, err := s.unitSvc.Create(context.Background(), unit.CreateRequest{
		BatchID: batchID,
		GTIN:    "01234567890123",
	}, "mfg-operator")
	s.Require().NoError(err)
	return u
}

func (s *PipelineSuite) verify(req Request) Outcome {
	out, err := s.pipeline.Verify(context.Background(), req)
	s.Require().NoError(err)
	return out
}

func (s *PipelineSuite) alertTypes() []string {
	active, err := s.alerts.Active(context.Background())
	s.Require().NoError(err)
	types := make([]string, 0, len(active))
	for _, a := range active {
		types = append(types, a.Type)
	}
	return types
}

func (s *PipelineSuite) TestValidScan() {
	u := s.createUnit(s.batchID)

	out := s.verify(Request{SerialNumber: u.SerialNumber, ActorID: "pharmacist-1"})

	s.Equal(ResultValid, out.Result)
	s.True(out.IsValid)
	s.Equal("Product is authentic and valid", out.Message)
	s.Equal("Atorvastatin 20mg", out.DrugName)
	s.Equal("PharmaCorp", out.Manufacturer)
	s.Require().NotNil(out.UnitID)
	s.Equal(u.ID, *out.UnitID)
	s.Empty(out.Warnings)

	s.Run("valid scan lands in the ledger", func() {
		entries, err := s.ledgerStore.ListByEntity(context.Background(), "SerializedUnit", u.ID.String())
		s.Require().NoError(err)
		var actions []string
		for _, e := range entries {
			actions = append(actions, e.Action)
		}
		s.Contains(actions, "UNIT_VERIFIED")
	})

	s.Run("outcome is persisted", func() {
		recorded, err := s.history.ListBySerialSince(context.Background(), u.SerialNumber, time.Time{})
		s.Require().NoError(err)
		s.Require().Len(recorded, 1)
		s.Equal(ResultValid, recorded[0].Result)
	})
}

func (s *PipelineSuite) TestUnknownSerial() {
	out := s.verify(Request{SerialNumber: "SN000000000000000000"})

	s.Equal(ResultNotFound, out.Result)
	s.False(out.IsValid)
	s.Equal("Serial number not found in system", out.Message)
	s.Nil(out.UnitID)

	// Failed attempts are recorded too.
	recorded, err := s.history.ListBySerialSince(context.Background(), "SN000000000000000000", time.Time{})
	s.Require().NoError(err)
	s.Len(recorded, 1)
}

func (s *PipelineSuite) TestOrphanedUnitIsInvalid() {
	orphan := unit.SerializedUnit{
		ID:           uuid.New(),
		SerialNumber: signing.NewSerial(),
		BatchID:      uuid.New(),
		GTIN:         "01234567890123",
		CryptoTail:   "bogus",
		KeyVersion:   1,
		Status:       unit.StatusActive,
		CreatedAt:    time.Now(),
	}
	s.Require().NoError(s.unitStore.Create(context.Background(), orphan))

	out := s.verify(Request{SerialNumber: orphan.SerialNumber})

	s.Equal(ResultInvalid, out.Result)
	s.Equal("Batch information not found", out.Message)
	s.False(out.PossibleCounterfeit)
}

func (s *PipelineSuite) TestTamperedCryptoTail() {
	u := s.createUnit(s.batchID)
	s.Equal(ResultValid, s.verify(Request{SerialNumber: u.SerialNumber}).Result)

	s.unitStore.TamperCryptoTail(u.SerialNumber, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")

	out := s.verify(Request{SerialNumber: u.SerialNumber})

	s.Equal(ResultInvalid, out.Result)
	s.True(out.PossibleCounterfeit)
	s.Equal("Crypto-tail verification failed - possible counterfeit", out.Message)
	s.Contains(s.alertTypes(), alert.TypeCounterfeitDetected)
}

func (s *PipelineSuite) TestRecalledOutranksExpired() {
	expiredBatch := s.seedBatch(time.Now().AddDate(0, -6, 0))
	u := s.createUnit(expiredBatch)

	_, err := s.recalls.Initiate(context.Background(), expiredBatch, recall.ClassI, "sterility failure", "qa-lead")
	s.Require().NoError(err)

	out := s.verify(Request{SerialNumber: u.SerialNumber})

	// Unit is both recalled and expired; the recall branch runs first.
	s.Equal(ResultRecalled, out.Result)
	s.Equal("This product has been recalled", out.Message)
}

func (s *PipelineSuite) TestExpired() {
	expiredBatch := s.seedBatch(time.Now().AddDate(0, 0, -1))
	u := s.createUnit(expiredBatch)

	out := s.verify(Request{SerialNumber: u.SerialNumber})

	s.Equal(ResultExpired, out.Result)
	s.Equal("Product has expired", out.Message)
	s.Require().Len(out.Warnings, 1)
	s.Contains(out.Warnings[0], "Expired on ")
}

func (s *PipelineSuite) TestQuarantined() {
	u := s.createUnit(s.batchID)
	_, err := s.unitSvc.Quarantine(context.Background(), s.batchID, "qa-lead", "temperature excursion")
	s.Require().NoError(err)

	out := s.verify(Request{SerialNumber: u.SerialNumber})

	s.Equal(ResultQuarantined, out.Result)
	s.Equal("Product is quarantined", out.Message)
}

func (s *PipelineSuite) TestAlreadyDispensed() {
	u := s.createUnit(s.batchID)
	_, err := s.unitSvc.Decommission(context.Background(), u.ID, "pharmacist-1", "Main St Pharmacy")
	s.Require().NoError(err)

	out := s.verify(Request{SerialNumber: u.SerialNumber})

	s.Equal(ResultAlreadyDispensed, out.Result)
	s.Equal("Product has already been dispensed", out.Message)
	s.Require().Len(out.Warnings, 1)
	s.Equal("Dispensed at: Main St Pharmacy", out.Warnings[0])
}

func (s *PipelineSuite) TestDuplicateScanDetector() {
	u := s.createUnit(s.batchID)

	for i := 0; i < 3; i++ {
		out := s.verify(Request{SerialNumber: u.SerialNumber})
		s.Equal(ResultValid, out.Result)
		s.Empty(out.Warnings)
	}

	out := s.verify(Request{SerialNumber: u.SerialNumber})

	// The fourth scan inside the window crosses the limit. It still
	// classifies Valid; the detector only warns and alerts.
	s.Equal(ResultValid, out.Result)
	s.True(out.IsValid)
	s.Contains(out.Warnings, "Multiple verification attempts detected in the last hour")
	s.Contains(s.alertTypes(), alert.TypeDuplicateScan)
}

func (s *PipelineSuite) TestDistanceTimeCollisionDetector() {
	u := s.createUnit(s.batchID)

	lat, lon := 0.0, 0.0
	first := s.verify(Request{SerialNumber: u.SerialNumber, Latitude: &lat, Longitude: &lon, Location: "Rotterdam DC"})
	s.Equal(ResultValid, first.Result)
	s.Empty(first.Warnings)

	farLat, farLon := 0.0, 10.0
	out := s.verify(Request{SerialNumber: u.SerialNumber, Latitude: &farLat, Longitude: &farLon, Location: "Lagos DC"})

	s.Equal(ResultValid, out.Result)
	s.Require().Len(out.Warnings, 1)
	s.Contains(out.Warnings[0], "Suspicious scanning pattern:")
	s.Contains(out.Warnings[0], "km away from previous scan")
	s.Contains(s.alertTypes(), alert.TypeDistanceTimeCollision)
}

func (s *PipelineSuite) TestStats() {
	u := s.createUnit(s.batchID)
	s.verify(Request{SerialNumber: u.SerialNumber})
	s.verify(Request{SerialNumber: "SN999999999999999999"})

	stats, err := s.pipeline.Stats(context.Background(), time.Now().Add(-time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(2), stats.Total)
	s.Equal(int64(1), stats.Valid)
	s.Equal(int64(1), stats.Invalid)
}
