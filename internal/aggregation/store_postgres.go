package aggregation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pharmatrace/pkg/platform/sentinel"
	txcontext "pharmatrace/pkg/platform/tx"
)

// PostgresStore persists aggregations in PostgreSQL. Child unit ids live in a
// uuid array column; the authoritative parent link is still the unit row's
// parent_aggregation_id.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, a Aggregation) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO aggregations
			(id, parent_serial_number, agg_type, batch_id, child_unit_ids,
			 active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ParentSerialNumber, string(a.Type), a.BatchID, pq.Array(a.ChildUnitIDs),
		a.Active, a.CreatedBy, a.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert aggregation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Aggregation, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, parent_serial_number, agg_type, batch_id, child_unit_ids,
		       active, created_by, created_at, disaggregated_by, disaggregated_at
		FROM aggregations WHERE id = $1`, id)

	var a Aggregation
	var aggType string
	var disaggregatedBy sql.NullString
	var disaggregatedAt sql.NullTime
	err := row.Scan(&a.ID, &a.ParentSerialNumber, &aggType, &a.BatchID,
		pq.Array(&a.ChildUnitIDs), &a.Active, &a.CreatedBy, &a.CreatedAt,
		&disaggregatedBy, &disaggregatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Aggregation{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Aggregation{}, fmt.Errorf("scan aggregation: %w", err)
	}
	a.Type = Type(aggType)
	a.DisaggregatedBy = disaggregatedBy.String
	if disaggregatedAt.Valid {
		a.DisaggregatedAt = &disaggregatedAt.Time
	}
	return a, nil
}

func (s *PostgresStore) Update(ctx context.Context, a Aggregation) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE aggregations
		SET active = $2, disaggregated_by = $3, disaggregated_at = $4
		WHERE id = $1`,
		a.ID, a.Active, nullIfEmpty(a.DisaggregatedBy), a.DisaggregatedAt,
	)
	if err != nil {
		return fmt.Errorf("update aggregation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update aggregation: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
