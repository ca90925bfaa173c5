package transition

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	txcontext "pharmatrace/pkg/platform/tx"
)

// PostgresStore persists transition records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, record Record) error {
	query := `
		INSERT INTO status_transitions
			(id, entity_type, entity_id, from_status, to_status, reason, actor_id, actor_username, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		record.ID,
		string(record.EntityType),
		record.EntityID,
		record.FromStatus,
		record.ToStatus,
		record.Reason,
		record.ActorID,
		record.ActorUsername,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert status transition: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityType EntityType, entityID uuid.UUID) ([]Record, error) {
	query := `
		SELECT id, entity_type, entity_id, from_status, to_status, reason, actor_id, actor_username, created_at
		FROM status_transitions
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("list status transitions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var et string
		if err := rows.Scan(&r.ID, &et, &r.EntityID, &r.FromStatus, &r.ToStatus, &r.Reason, &r.ActorID, &r.ActorUsername, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status transition: %w", err)
		}
		r.EntityType = EntityType(et)
		records = append(records, r)
	}
	return records, rows.Err()
}
