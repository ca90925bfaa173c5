package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"pharmatrace/internal/alert"
	"pharmatrace/internal/batch"
	"pharmatrace/internal/ledger"
	"pharmatrace/internal/platform/config"
	"pharmatrace/internal/unit"
	"pharmatrace/internal/verification/metrics"
	"pharmatrace/internal/verification/scanwindow"
	"pharmatrace/pkg/platform/middleware/metadata"
	"pharmatrace/pkg/platform/sentinel"
)

const entitySerializedUnit = "SerializedUnit"

// UnitDirectory resolves serial numbers to units.
type UnitDirectory interface {
	GetBySerial(ctx context.Context, serialNumber string) (unit.SerializedUnit, error)
}

// BatchDirectory resolves batch records.
type BatchDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (batch.Batch, error)
}

// RecallChecker reports whether a batch is under an active recall.
type RecallChecker interface {
	HasActiveRecall(ctx context.Context, batchID uuid.UUID) (bool, error)
}

// AlertSink receives anomaly and counterfeit signals. Raise never fails from
// the pipeline's point of view.
type AlertSink interface {
	Raise(ctx context.Context, alertType string, severity alert.Severity, message, relatedEntityType string, relatedEntityID *uuid.UUID)
}

// Verifier receives signature checks; satisfied by signing.Signer.
type Verifier interface {
	Verify(serial, gtin, batchNumber, tag string, keyVersion int) bool
}

// Service runs the verification pipeline. The branch order is fixed and
// checked most-severe first: a recalled unit in an expired batch classifies as
// Recalled, not Expired.
type Service struct {
	units   UnitDirectory
	batches BatchDirectory
	recalls RecallChecker
	signer  Verifier
	history HistoryStore
	scans   scanwindow.Store
	alerts  AlertSink
	ledger  *ledger.Recorder
	cfg     config.VerificationConfig
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(
	units UnitDirectory,
	batches BatchDirectory,
	recalls RecallChecker,
	signer Verifier,
	history HistoryStore,
	scans scanwindow.Store,
	alerts AlertSink,
	ledgerRec *ledger.Recorder,
	cfg config.VerificationConfig,
	m *metrics.Metrics,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		units:   units,
		batches: batches,
		recalls: recalls,
		signer:  signer,
		history: history,
		scans:   scans,
		alerts:  alerts,
		ledger:  ledgerRec,
		cfg:     cfg,
		metrics: m,
		tracer:  tracer,
		logger:  logger,
		now:     time.Now,
	}
}

// Verify classifies one scan. Business rejections (counterfeit, recalled,
// expired, and the rest) are outcomes, never errors; the error return is for
// infrastructure failure only.
func (s *Service) Verify(ctx context.Context, req Request) (Outcome, error) {
	start := s.now()

	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "verification.Verify",
			trace.WithAttributes(attribute.String("serial_number", req.SerialNumber)))
		defer span.End()
	}

	outcome, err := s.classify(ctx, req, start)
	if err != nil {
		return Outcome{}, err
	}

	outcome.ResponseTime = s.now().Sub(start)
	s.record(ctx, outcome)
	return outcome, nil
}

func (s *Service) classify(ctx context.Context, req Request, start time.Time) (Outcome, error) {
	outcome := Outcome{
		ID:           uuid.New(),
		SerialNumber: req.SerialNumber,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Location:     req.Location,
		DeviceID:     deviceID(ctx, req),
		ActorID:      req.ActorID,
		VerifiedAt:   start,
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	unitStart := s.now()
	u, err := s.units.GetBySerial(lookupCtx, req.SerialNumber)
	s.metrics.ObserveLookup("unit", s.now().Sub(unitStart))
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "unit lookup failed", "serial_number", req.SerialNumber, "error", err)
		}
		outcome.Result = ResultNotFound
		outcome.Message = "Serial number not found in system"
		return outcome, nil
	}
	outcome.UnitID = &u.ID

	ev, recallErr := s.gatherEvidence(lookupCtx, u.BatchID)
	if ev.batchErr != nil {
		if !errors.Is(ev.batchErr, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "batch lookup failed", "batch_id", u.BatchID, "error", ev.batchErr)
		}
		outcome.Result = ResultInvalid
		outcome.Message = "Batch information not found"
		return outcome, nil
	}
	b := ev.batch
	outcome.DrugName = b.DrugName
	outcome.Manufacturer = b.Manufacturer
	outcome.BatchNumber = b.BatchNumber
	exp := b.ExpirationDate
	outcome.ExpirationDate = &exp

	if !s.signer.Verify(u.SerialNumber, u.GTIN, b.BatchNumber, u.CryptoTail, u.KeyVersion) {
		outcome.Result = ResultInvalid
		outcome.Message = "Crypto-tail verification failed - possible counterfeit"
		outcome.PossibleCounterfeit = true
		s.metrics.AnomalyDetected("counterfeit")
		s.alerts.Raise(ctx, alert.TypeCounterfeitDetected, alert.SeverityHigh,
			fmt.Sprintf("Crypto-tail mismatch for serial %s", u.SerialNumber),
			entitySerializedUnit, &u.ID)
		return outcome, nil
	}

	if recallErr != nil {
		return Outcome{}, fmt.Errorf("checking recall status for batch %s: %w", u.BatchID, recallErr)
	}
	if ev.recalled || u.Status == unit.StatusRecalled {
		outcome.Result = ResultRecalled
		outcome.Message = "This product has been recalled"
		return outcome, nil
	}

	if dateOnly(b.ExpirationDate).Before(dateOnly(start)) {
		outcome.Result = ResultExpired
		outcome.Message = "Product has expired"
		outcome.Warnings = append(outcome.Warnings,
			fmt.Sprintf("Expired on %s", b.ExpirationDate.Format("2006-01-02")))
		return outcome, nil
	}

	if u.Status == unit.StatusQuarantined {
		outcome.Result = ResultQuarantined
		outcome.Message = "Product is quarantined"
		return outcome, nil
	}

	if u.Status == unit.StatusDispensed {
		outcome.Result = ResultAlreadyDispensed
		outcome.Message = "Product has already been dispensed"
		if u.Dispensation != nil && u.Dispensation.Pharmacy != "" {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("Dispensed at: %s", u.Dispensation.Pharmacy))
		}
		return outcome, nil
	}

	outcome.Result = ResultValid
	outcome.IsValid = true
	outcome.Message = "Product is authentic and valid"
	s.runDetectors(ctx, u, &outcome)

	s.ledger.TryAppend(ctx, "UNIT_VERIFIED", entitySerializedUnit, u.ID.String(), req.ActorID,
		map[string]any{
			"serial_number": u.SerialNumber,
			"location":      req.Location,
			"device_id":     outcome.DeviceID,
		})
	return outcome, nil
}

type evidence struct {
	batch    batch.Batch
	batchErr error
	recalled bool
}

// gatherEvidence fetches the batch and recall status concurrently. Both
// lookups always complete; the batch error rides in the evidence because a
// missing batch is a classification while a recall check failure is
// infrastructure.
func (s *Service) gatherEvidence(ctx context.Context, batchID uuid.UUID) (evidence, error) {
	var ev evidence

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lookupStart := s.now()
		ev.batch, ev.batchErr = s.batches.Get(gctx, batchID)
		s.metrics.ObserveLookup("batch", s.now().Sub(lookupStart))
		return nil
	})
	g.Go(func() error {
		lookupStart := s.now()
		var err error
		ev.recalled, err = s.recalls.HasActiveRecall(gctx, batchID)
		s.metrics.ObserveLookup("recall", s.now().Sub(lookupStart))
		return err
	})
	err := g.Wait()
	return ev, err
}

// runDetectors runs the anomaly checks on a scan that already classified
// Valid. Detector hits add warnings and raise alerts but never downgrade the
// classification.
func (s *Service) runDetectors(ctx context.Context, u unit.SerializedUnit, outcome *Outcome) {
	count, err := s.scans.Record(ctx, u.SerialNumber, outcome.VerifiedAt, s.cfg.DuplicateScanWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "scan window update failed", "serial_number", u.SerialNumber, "error", err)
	} else if count > int64(s.cfg.DuplicateScanLimit) {
		outcome.Warnings = append(outcome.Warnings, "Multiple verification attempts detected in the last hour")
		s.metrics.AnomalyDetected("duplicate_scan")
		s.alerts.Raise(ctx, alert.TypeDuplicateScan, alert.SeverityMedium,
			fmt.Sprintf("Serial %s verified %d times within %s", u.SerialNumber, count, s.cfg.DuplicateScanWindow),
			entitySerializedUnit, &u.ID)
	}

	if outcome.Latitude == nil || outcome.Longitude == nil {
		return
	}
	since := outcome.VerifiedAt.Add(-s.cfg.MinTimeBetweenScans)
	previous, err := s.history.ListBySerialSince(ctx, u.SerialNumber, since)
	if err != nil {
		s.logger.WarnContext(ctx, "verification history lookup failed", "serial_number", u.SerialNumber, "error", err)
		return
	}
	for _, prev := range previous {
		if prev.Latitude == nil || prev.Longitude == nil {
			continue
		}
		dist := HaversineKm(*outcome.Latitude, *outcome.Longitude, *prev.Latitude, *prev.Longitude)
		if dist <= s.cfg.MaxDistanceKm {
			continue
		}
		outcome.Warnings = append(outcome.Warnings,
			fmt.Sprintf("Suspicious scanning pattern: %.2f km away from previous scan", dist))
		s.metrics.AnomalyDetected("distance_time_collision")
		s.alerts.Raise(ctx, alert.TypeDistanceTimeCollision, alert.SeverityHigh,
			fmt.Sprintf("Serial %s scanned %.2f km apart within %s", u.SerialNumber, dist, s.cfg.MinTimeBetweenScans),
			entitySerializedUnit, &u.ID)
		return
	}
}

// record persists the outcome and updates metrics. It runs on a context
// detached from the request so a client disconnect after classification does
// not lose the history row.
func (s *Service) record(ctx context.Context, outcome Outcome) {
	s.metrics.ObserveOutcome(string(outcome.Result), outcome.ResponseTime)

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LookupTimeout)
	defer cancel()
	if err := s.history.Append(persistCtx, outcome); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist verification outcome",
			"serial_number", outcome.SerialNumber,
			"result", outcome.Result,
			"error", err,
		)
	}
}

// History returns recent verification attempts for one serial.
func (s *Service) History(ctx context.Context, serialNumber string, since time.Time) ([]Outcome, error) {
	return s.history.ListBySerialSince(ctx, serialNumber, since)
}

// Stats aggregates outcomes recorded at or after since.
func (s *Service) Stats(ctx context.Context, since time.Time) (Stats, error) {
	return s.history.Stats(ctx, since)
}

func deviceID(ctx context.Context, req Request) string {
	if req.DeviceID != "" {
		return req.DeviceID
	}
	return metadata.GetDeviceID(ctx)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
