package recall

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/sentinel"
	txcontext "pharmatrace/pkg/platform/tx"
)

// PostgresStore persists recalls in PostgreSQL.
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

func (s *PostgresStore) Create(ctx context.Context, r Recall) error {
	query := `
		INSERT INTO recalls
			(id, batch_id, classification, status, reason, affected_units,
			 recovered_units, effectiveness, initiated_by, initiated_at, closed_by, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		r.ID, r.BatchID, string(r.Classification), string(r.Status), r.Reason,
		r.AffectedUnits, r.RecoveredUnits, r.Effectiveness,
		r.InitiatedBy, r.InitiatedAt, r.ClosedBy, r.ClosedAt)
	if err != nil {
		return fmt.Errorf("insert recall: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Recall, error) {
	query := `
		SELECT id, batch_id, classification, status, reason, affected_units,
		       recovered_units, effectiveness, initiated_by, initiated_at, closed_by, closed_at
		FROM recalls WHERE id = $1
	`
	var r Recall
	var classification, status string
	var closedBy sql.NullString
	var closedAt sql.NullTime
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.BatchID, &classification, &status, &r.Reason, &r.AffectedUnits,
		&r.RecoveredUnits, &r.Effectiveness, &r.InitiatedBy, &r.InitiatedAt, &closedBy, &closedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Recall{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Recall{}, fmt.Errorf("get recall: %w", err)
	}
	r.Classification = Classification(classification)
	r.Status = RecallStatus(status)
	r.ClosedBy = closedBy.String
	if closedAt.Valid {
		r.ClosedAt = &closedAt.Time
	}
	return r, nil
}

func (s *PostgresStore) Update(ctx context.Context, r Recall) error {
	query := `
		UPDATE recalls
		SET status = $2, recovered_units = $3, effectiveness = $4, closed_by = $5, closed_at = $6
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		r.ID, string(r.Status), r.RecoveredUnits, r.Effectiveness, r.ClosedBy, r.ClosedAt)
	if err != nil {
		return fmt.Errorf("update recall: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) HasActiveByBatch(ctx context.Context, batchID uuid.UUID) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM recalls WHERE batch_id = $1 AND status = 'ACTIVE')`,
		batchID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active recall: %w", err)
	}
	return exists, nil
}
