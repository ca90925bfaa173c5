package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists readings in the temperature_readings table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, r Reading) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO temperature_readings (id, batch_id, temperature_c, humidity_pct, location, recorded_by, excursion, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.BatchID, r.TemperatureC, r.HumidityPct, r.Location, r.RecordedBy, r.Excursion, r.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting temperature reading: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, temperature_c, humidity_pct, location, recorded_by, excursion, recorded_at
		FROM temperature_readings
		WHERE batch_id = $1
		ORDER BY recorded_at DESC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("listing temperature readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.ID, &r.BatchID, &r.TemperatureC, &r.HumidityPct, &r.Location, &r.RecordedBy, &r.Excursion, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning temperature reading: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
