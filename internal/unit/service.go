package unit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/batch"
	"pharmatrace/internal/ledger"
	"pharmatrace/internal/signing"
	"pharmatrace/internal/transition"
	"pharmatrace/pkg/platform/sentinel"
	"pharmatrace/pkg/platform/tx"
)

// Ledger entity type names as they appear in provenance records.
const (
	entitySerializedUnit = "SerializedUnit"
	entityBatch          = "Batch"
)

// ErrReasonRequired rejects a revert without an operator-supplied reason.
var ErrReasonRequired = errors.New("reason is required")

// BatchDirectory is the read-side collaborator resolving a unit's batch.
type BatchDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (batch.Batch, error)
}

// Service owns serialized-unit mutation. Every successful transition also
// writes a StatusTransitionRecord and a ledger entry; the three writes share a
// transaction, so a unit can never change state without provenance.
type Service struct {
	store       Store
	batches     BatchDirectory
	signer      signing.Signer
	transitions *transition.Recorder
	ledger      *ledger.Recorder
	txr         tx.Runner
	logger      *slog.Logger
}

func NewService(store Store, batches BatchDirectory, signer signing.Signer, transitions *transition.Recorder, led *ledger.Recorder, txr tx.Runner, logger *slog.Logger) *Service {
	if txr == nil {
		txr = tx.NopRunner{}
	}
	return &Service{
		store:       store,
		batches:     batches,
		signer:      signer,
		transitions: transitions,
		ledger:      led,
		txr:         txr,
		logger:      logger,
	}
}

// CreateRequest carries the identity of a unit to serialize. An empty
// SerialNumber asks the signing backend to generate one.
type CreateRequest struct {
	SerialNumber string
	BatchID      uuid.UUID
	GTIN         string
}

// Create serializes one unit: signs its identity tuple, renders the carrier
// payload, and stamps the active key version.
func (s *Service) Create(ctx context.Context, req CreateRequest, actorID string) (SerializedUnit, error) {
	if err := validateGTIN(req.GTIN); err != nil {
		return SerializedUnit{}, err
	}

	b, err := s.batches.Get(ctx, req.BatchID)
	if err != nil {
		return SerializedUnit{}, fmt.Errorf("resolve batch %s: %w", req.BatchID, err)
	}
	if b.Status != batch.StatusActive {
		return SerializedUnit{}, fmt.Errorf("batch %s is not active: %w", b.BatchNumber, sentinel.ErrInvalidState)
	}

	serial := req.SerialNumber
	if serial == "" {
		serial = signing.NewSerial()
	}

	cryptoTail, err := s.signer.Sign(serial, req.GTIN, b.BatchNumber)
	if err != nil {
		return SerializedUnit{}, fmt.Errorf("sign unit identity: %w", err)
	}

	now := time.Now()
	u := SerializedUnit{
		ID:             uuid.New(),
		SerialNumber:   serial,
		BatchID:        req.BatchID,
		GTIN:           req.GTIN,
		CryptoTail:     cryptoTail,
		CarrierPayload: signing.CarrierPayload(req.GTIN, serial, b.BatchNumber, b.ExpirationDate),
		KeyVersion:     s.signer.CurrentKeyVersion(),
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return SerializedUnit{}, fmt.Errorf("serial number %s already exists: %w", serial, err)
		}
		return SerializedUnit{}, fmt.Errorf("create serialized unit: %w", err)
	}

	s.ledger.TryAppend(ctx, "UNIT_SERIALIZED", entitySerializedUnit, u.ID.String(), actorID,
		map[string]any{"serialNumber": serial, "batchId": req.BatchID.String()})
	return u, nil
}

// BulkCreate serializes quantity units for a batch with generated serials.
func (s *Service) BulkCreate(ctx context.Context, batchID uuid.UUID, gtin string, quantity int, actorID string) ([]SerializedUnit, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	units := make([]SerializedUnit, 0, quantity)
	for i := 0; i < quantity; i++ {
		u, err := s.Create(ctx, CreateRequest{BatchID: batchID, GTIN: gtin}, actorID)
		if err != nil {
			return units, fmt.Errorf("bulk create stopped at unit %d: %w", i, err)
		}
		units = append(units, u)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "bulk created serialized units", "batch_id", batchID, "quantity", quantity)
	}
	return units, nil
}

// Decommission dispenses a unit at a pharmacy. The precondition rides the
// store's update predicate, so a concurrent decommission loses with a
// conflict instead of silently double-dispensing.
func (s *Service) Decommission(ctx context.Context, unitID uuid.UUID, actorID, pharmacy string) (SerializedUnit, error) {
	current, err := s.store.Get(ctx, unitID)
	if err != nil {
		return SerializedUnit{}, fmt.Errorf("resolve unit %s: %w", unitID, err)
	}
	if !CanTransition(current.Status, StatusDispensed) {
		return SerializedUnit{}, fmt.Errorf("cannot dispense unit in status %s: %w", current.Status, sentinel.ErrConflict)
	}

	disp := &Dispensation{At: time.Now(), ActorID: actorID, Pharmacy: pharmacy}
	var updated SerializedUnit
	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		updated, err = s.store.UpdateStatus(ctx, unitID, current.Status, StatusDispensed, disp)
		if err != nil {
			return err
		}
		if err := s.transitions.Record(ctx, transition.EntitySerializedUnit, unitID,
			string(current.Status), string(StatusDispensed),
			"Unit decommissioned at "+pharmacy, actorID); err != nil {
			return err
		}
		_, err = s.ledger.Append(ctx, "UNIT_DECOMMISSIONED", entitySerializedUnit, unitID.String(), actorID,
			map[string]any{"serialNumber": current.SerialNumber, "pharmacy": pharmacy})
		return err
	})
	if err != nil {
		return SerializedUnit{}, err
	}
	return updated, nil
}

// RevertDecommission puts a dispensed unit back into circulation, clearing its
// dispensation metadata. A reason is mandatory.
func (s *Service) RevertDecommission(ctx context.Context, unitID uuid.UUID, actorID, reason string) (SerializedUnit, error) {
	if reason == "" {
		return SerializedUnit{}, ErrReasonRequired
	}
	current, err := s.store.Get(ctx, unitID)
	if err != nil {
		return SerializedUnit{}, fmt.Errorf("resolve unit %s: %w", unitID, err)
	}
	if current.Status != StatusDispensed {
		return SerializedUnit{}, fmt.Errorf("unit is not dispensed: %w", sentinel.ErrConflict)
	}

	var updated SerializedUnit
	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		updated, err = s.store.UpdateStatus(ctx, unitID, StatusDispensed, StatusActive, nil)
		if err != nil {
			return err
		}
		if err := s.transitions.Record(ctx, transition.EntitySerializedUnit, unitID,
			string(StatusDispensed), string(StatusActive), reason, actorID); err != nil {
			return err
		}
		_, err = s.ledger.Append(ctx, "UNIT_REVERT_DECOMMISSION", entitySerializedUnit, unitID.String(), actorID,
			map[string]any{"serialNumber": current.SerialNumber, "reason": reason})
		return err
	})
	if err != nil {
		return SerializedUnit{}, err
	}
	return updated, nil
}

// Quarantine moves every active unit of a batch into quarantine with one
// set-based write, so a recall never leaves a batch half frozen.
func (s *Service) Quarantine(ctx context.Context, batchID uuid.UUID, actorID, reason string) (int64, error) {
	var moved int64
	err := s.txr.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		moved, err = s.store.BulkUpdateStatus(ctx, batchID, StatusActive, StatusQuarantined)
		if err != nil {
			return fmt.Errorf("quarantine batch %s: %w", batchID, err)
		}
		if err := s.transitions.Record(ctx, transition.EntityBatch, batchID,
			string(StatusActive), string(StatusQuarantined), reason, actorID); err != nil {
			return err
		}
		_, err = s.ledger.Append(ctx, "BATCH_QUARANTINED", entityBatch, batchID.String(), actorID,
			map[string]any{"quarantinedCount": moved, "reason": reason})
		return err
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// Destroy ends a quarantined unit's life. Logical only: the row and its
// history remain queryable.
func (s *Service) Destroy(ctx context.Context, unitID uuid.UUID, actorID, reason string) (SerializedUnit, error) {
	current, err := s.store.Get(ctx, unitID)
	if err != nil {
		return SerializedUnit{}, fmt.Errorf("resolve unit %s: %w", unitID, err)
	}
	if current.Status != StatusQuarantined {
		return SerializedUnit{}, fmt.Errorf("unit is not quarantined: %w", sentinel.ErrConflict)
	}

	var updated SerializedUnit
	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		updated, err = s.store.UpdateStatus(ctx, unitID, StatusQuarantined, StatusDestroyed, nil)
		if err != nil {
			return err
		}
		if err := s.transitions.Record(ctx, transition.EntitySerializedUnit, unitID,
			string(StatusQuarantined), string(StatusDestroyed), reason, actorID); err != nil {
			return err
		}
		_, err = s.ledger.Append(ctx, "UNIT_DESTROYED", entitySerializedUnit, unitID.String(), actorID,
			map[string]any{"serialNumber": current.SerialNumber, "reason": reason})
		return err
	})
	if err != nil {
		return SerializedUnit{}, err
	}
	return updated, nil
}

// Get returns a unit by ID.
func (s *Service) Get(ctx context.Context, unitID uuid.UUID) (SerializedUnit, error) {
	return s.store.Get(ctx, unitID)
}

// GetBySerial returns a unit by serial number.
func (s *Service) GetBySerial(ctx context.Context, serial string) (SerializedUnit, error) {
	return s.store.GetBySerial(ctx, serial)
}

func validateGTIN(gtin string) error {
	if len(gtin) != 14 {
		return fmt.Errorf("gtin must be 14 digits, got %d characters", len(gtin))
	}
	for _, c := range gtin {
		if c < '0' || c > '9' {
			return fmt.Errorf("gtin must be numeric")
		}
	}
	return nil
}
