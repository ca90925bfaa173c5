package unit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pharmatrace/internal/batch"
	"pharmatrace/internal/ledger"
	"pharmatrace/internal/signing"
	"pharmatrace/internal/transition"
	"pharmatrace/pkg/platform/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	store       *InMemoryStore
	batches     *batch.InMemoryStore
	ledgerStore *ledger.InMemoryStore
	transitions *transition.InMemoryStore
	service     *Service
	batchID     uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.batches = batch.NewInMemoryStore()
	s.ledgerStore = ledger.NewInMemoryStore()
	s.transitions = transition.NewInMemoryStore()

	signer, err := signing.NewHMACSigner("unit-test-master-key-material", 1)
	s.Require().NoError(err)

	s.service = NewService(
		s.store,
		s.batches,
		signer,
		transition.NewRecorder(s.transitions, nil, nil),
		ledger.NewRecorder(s.ledgerStore, nil, nil),
		nil,
		nil,
	)

	s.batchID = uuid.New()
	s.Require().NoError(s.batches.Create(context.Background(), batch.Batch{
		ID:             s.batchID,
		DrugName:       "Amoxicillin 500mg",
		Manufacturer:   "PharmaCorp",
		BatchNumber:    "LOT-2027-001",
		Status:         batch.StatusActive,
		ExpirationDate: time.Now().AddDate(1, 0, 0),
		CreatedAt:      time.Now(),
	}))
}

func (s *ServiceSuite) createUnit() SerializedUnit {
	u, err := s.service.Create(context.Background(), CreateRequest{
		BatchID: s.batchID,
		GTIN:    "01234567890123",
	}, "actor-1")
	s.Require().NoError(err)
	return u
}

func (s *ServiceSuite) TestCreate() {
	ctx := context.Background()

	s.Run("stamps identity and key version", func() {
		u := s.createUnit()
		s.NotEmpty(u.SerialNumber)
		s.NotEmpty(u.CryptoTail)
		s.Equal(1, u.KeyVersion)
		s.Equal(StatusActive, u.Status)
		s.Contains(u.CarrierPayload, "(01)01234567890123")
		s.Contains(u.CarrierPayload, "(10)LOT-2027-001")
	})

	s.Run("rejects duplicate serial", func() {
		u := s.createUnit()
		_, err := s.service.Create(ctx, CreateRequest{
			SerialNumber: u.SerialNumber,
			BatchID:      s.batchID,
			GTIN:         "01234567890123",
		}, "actor-1")
		s.ErrorIs(err, sentinel.ErrDuplicate)
	})

	s.Run("rejects malformed gtin", func() {
		_, err := s.service.Create(ctx, CreateRequest{BatchID: s.batchID, GTIN: "123"}, "actor-1")
		s.Error(err)
	})

	s.Run("rejects unknown batch", func() {
		_, err := s.service.Create(ctx, CreateRequest{BatchID: uuid.New(), GTIN: "01234567890123"}, "actor-1")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects inactive batch", func() {
		inactive := uuid.New()
		s.Require().NoError(s.batches.Create(ctx, batch.Batch{
			ID: inactive, BatchNumber: "LOT-X", Status: batch.StatusInactive,
			ExpirationDate: time.Now().AddDate(1, 0, 0),
		}))
		_, err := s.service.Create(ctx, CreateRequest{BatchID: inactive, GTIN: "01234567890123"}, "actor-1")
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *ServiceSuite) TestBulkCreate() {
	units, err := s.service.BulkCreate(context.Background(), s.batchID, "01234567890123", 5, "actor-1")
	s.NoError(err)
	s.Len(units, 5)

	serials := make(map[string]bool)
	for _, u := range units {
		serials[u.SerialNumber] = true
	}
	s.Len(serials, 5, "generated serials must be unique")
}

func (s *ServiceSuite) TestDecommission() {
	ctx := context.Background()

	s.Run("dispenses an active unit", func() {
		u := s.createUnit()
		updated, err := s.service.Decommission(ctx, u.ID, "pharmacist-1", "Main St Pharmacy")
		s.Require().NoError(err)
		s.Equal(StatusDispensed, updated.Status)
		s.Require().NotNil(updated.Dispensation)
		s.Equal("Main St Pharmacy", updated.Dispensation.Pharmacy)
		s.Equal("pharmacist-1", updated.Dispensation.ActorID)
	})

	s.Run("second decommission conflicts", func() {
		u := s.createUnit()
		_, err := s.service.Decommission(ctx, u.ID, "pharmacist-1", "Main St Pharmacy")
		s.Require().NoError(err)
		_, err = s.service.Decommission(ctx, u.ID, "pharmacist-2", "Other Pharmacy")
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("records transition and ledger entry", func() {
		u := s.createUnit()
		_, err := s.service.Decommission(ctx, u.ID, "pharmacist-1", "Main St Pharmacy")
		s.Require().NoError(err)

		records, err := s.transitions.ListByEntity(ctx, transition.EntitySerializedUnit, u.ID)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(string(StatusActive), records[0].FromStatus)
		s.Equal(string(StatusDispensed), records[0].ToStatus)

		entries, err := s.ledgerStore.ListByEntity(ctx, "SerializedUnit", u.ID.String())
		s.Require().NoError(err)
		var actions []string
		for _, e := range entries {
			actions = append(actions, e.Action)
		}
		s.Contains(actions, "UNIT_DECOMMISSIONED")
	})

	s.Run("unknown unit is not found", func() {
		_, err := s.service.Decommission(ctx, uuid.New(), "pharmacist-1", "Main St Pharmacy")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ServiceSuite) TestRevertDecommission() {
	ctx := context.Background()

	s.Run("reverts a dispensed unit and clears metadata", func() {
		u := s.createUnit()
		_, err := s.service.Decommission(ctx, u.ID, "pharmacist-1", "Main St Pharmacy")
		s.Require().NoError(err)

		updated, err := s.service.RevertDecommission(ctx, u.ID, "supervisor-1", "scanning error")
		s.Require().NoError(err)
		s.Equal(StatusActive, updated.Status)
		s.Nil(updated.Dispensation)
	})

	s.Run("requires a reason", func() {
		u := s.createUnit()
		_, err := s.service.RevertDecommission(ctx, u.ID, "supervisor-1", "")
		s.ErrorIs(err, ErrReasonRequired)
	})

	s.Run("non-dispensed unit conflicts", func() {
		u := s.createUnit()
		_, err := s.service.RevertDecommission(ctx, u.ID, "supervisor-1", "mistake")
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *ServiceSuite) TestQuarantineAndDestroy() {
	ctx := context.Background()

	units, err := s.service.BulkCreate(ctx, s.batchID, "01234567890123", 3, "actor-1")
	s.Require().NoError(err)

	// One unit already dispensed must not be swept into quarantine.
	_, err = s.service.Decommission(ctx, units[0].ID, "pharmacist-1", "Main St Pharmacy")
	s.Require().NoError(err)

	moved, err := s.service.Quarantine(ctx, s.batchID, "regulator-1", "contamination suspected")
	s.Require().NoError(err)
	s.EqualValues(2, moved)

	dispensed, err := s.store.Get(ctx, units[0].ID)
	s.Require().NoError(err)
	s.Equal(StatusDispensed, dispensed.Status)

	s.Run("quarantined unit can be destroyed", func() {
		destroyed, err := s.service.Destroy(ctx, units[1].ID, "regulator-1", "recall recovery")
		s.Require().NoError(err)
		s.Equal(StatusDestroyed, destroyed.Status)
	})

	s.Run("destroying a non-quarantined unit conflicts", func() {
		_, err := s.service.Destroy(ctx, units[0].ID, "regulator-1", "recall recovery")
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("destroyed unit remains queryable", func() {
		u, err := s.store.Get(ctx, units[1].ID)
		s.NoError(err)
		s.Equal(StatusDestroyed, u.Status)
	})
}
