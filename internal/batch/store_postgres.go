package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/sentinel"
)

// PostgresStore persists batches in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, b Batch) error {
	query := `
		INSERT INTO batches
			(id, drug_name, manufacturer, batch_number, status, expiration_date,
			 min_temperature, max_temperature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		b.ID, b.DrugName, b.Manufacturer, b.BatchNumber, string(b.Status),
		b.ExpirationDate, b.MinTemperature, b.MaxTemperature, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Batch, error) {
	query := `
		SELECT id, drug_name, manufacturer, batch_number, status, expiration_date,
		       min_temperature, max_temperature, created_at
		FROM batches WHERE id = $1
	`
	var b Batch
	var status string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.DrugName, &b.Manufacturer, &b.BatchNumber, &status,
		&b.ExpirationDate, &b.MinTemperature, &b.MaxTemperature, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Batch{}, fmt.Errorf("get batch: %w", err)
	}
	b.Status = BatchStatus(status)
	return b, nil
}
