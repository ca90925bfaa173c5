package unit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pharmatrace/pkg/platform/sentinel"
	txcontext "pharmatrace/pkg/platform/tx"
)

// PostgresStore persists serialized units in PostgreSQL. Status preconditions
// live inside the UPDATE predicates so racing transitions are decided by the
// database, not by stale reads.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, u SerializedUnit) error {
	query := `
		INSERT INTO serialized_units
			(id, serial_number, batch_id, gtin, crypto_tail, carrier_payload,
			 key_version, status, parent_aggregation_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		u.ID, u.SerialNumber, u.BatchID, u.GTIN, u.CryptoTail, u.CarrierPayload,
		u.KeyVersion, string(u.Status), u.ParentAggregationID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert serialized unit: %w", err)
	}
	return nil
}

const unitColumns = `id, serial_number, batch_id, gtin, crypto_tail, carrier_payload,
	key_version, status, parent_aggregation_id,
	dispensed_at, dispensed_by, dispensed_pharmacy, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (SerializedUnit, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM serialized_units WHERE id = $1`, id)
	return scanUnit(row.Scan)
}

func (s *PostgresStore) GetBySerial(ctx context.Context, serial string) (SerializedUnit, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM serialized_units WHERE serial_number = $1`, serial)
	return scanUnit(row.Scan)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next UnitStatus, disp *Dispensation) (SerializedUnit, error) {
	var dispensedAt *time.Time
	var dispensedBy, dispensedPharmacy *string
	if disp != nil {
		dispensedAt = &disp.At
		dispensedBy = &disp.ActorID
		dispensedPharmacy = &disp.Pharmacy
	}

	query := `
		UPDATE serialized_units
		SET status = $3, dispensed_at = $4, dispensed_by = $5,
		    dispensed_pharmacy = $6, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + unitColumns
	row := s.execer(ctx).QueryRowContext(ctx, query,
		id, string(expected), string(next), dispensedAt, dispensedBy, dispensedPharmacy)
	u, err := scanUnit(row.Scan)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Distinguish a missing unit from a failed precondition.
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, sentinel.ErrNotFound) {
			return SerializedUnit{}, sentinel.ErrNotFound
		}
		return SerializedUnit{}, sentinel.ErrConflict
	}
	return u, err
}

func (s *PostgresStore) BulkUpdateStatus(ctx context.Context, batchID uuid.UUID, from, to UnitStatus) (int64, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE serialized_units
		SET status = $3, updated_at = now()
		WHERE batch_id = $1 AND status = $2
	`, batchID, string(from), string(to))
	if err != nil {
		return 0, fmt.Errorf("bulk update unit status: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) LinkAggregation(ctx context.Context, id, aggregationID uuid.UUID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE serialized_units
		SET parent_aggregation_id = $2, updated_at = now()
		WHERE id = $1 AND status = $3 AND parent_aggregation_id IS NULL
	`, id, aggregationID, string(StatusActive))
	if err != nil {
		return fmt.Errorf("link unit aggregation: %w", err)
	}
	return s.linkOutcome(ctx, res, id)
}

func (s *PostgresStore) UnlinkAggregation(ctx context.Context, id, aggregationID uuid.UUID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE serialized_units
		SET parent_aggregation_id = NULL, updated_at = now()
		WHERE id = $1 AND parent_aggregation_id = $2
	`, id, aggregationID)
	if err != nil {
		return fmt.Errorf("unlink unit aggregation: %w", err)
	}
	return s.linkOutcome(ctx, res, id)
}

func (s *PostgresStore) linkOutcome(ctx context.Context, res sql.Result, id uuid.UUID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link unit aggregation: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) CountByBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var count int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM serialized_units WHERE batch_id = $1`, batchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count units by batch: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]SerializedUnit, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+unitColumns+` FROM serialized_units WHERE batch_id = $1 ORDER BY created_at`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list units by batch: %w", err)
	}
	defer rows.Close()

	var units []SerializedUnit
	for rows.Next() {
		u, err := scanUnit(rows.Scan)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func scanUnit(scan func(...any) error) (SerializedUnit, error) {
	var u SerializedUnit
	var status string
	var dispensedAt sql.NullTime
	var dispensedBy, dispensedPharmacy sql.NullString
	err := scan(&u.ID, &u.SerialNumber, &u.BatchID, &u.GTIN, &u.CryptoTail,
		&u.CarrierPayload, &u.KeyVersion, &status, &u.ParentAggregationID,
		&dispensedAt, &dispensedBy, &dispensedPharmacy, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SerializedUnit{}, sentinel.ErrNotFound
	}
	if err != nil {
		return SerializedUnit{}, fmt.Errorf("scan serialized unit: %w", err)
	}
	u.Status = UnitStatus(status)
	if dispensedAt.Valid {
		u.Dispensation = &Dispensation{
			At:       dispensedAt.Time,
			ActorID:  dispensedBy.String,
			Pharmacy: dispensedPharmacy.String,
		}
	}
	return u, nil
}
