package verification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresHistoryStore persists outcomes in the verification_outcomes table.
type PostgresHistoryStore struct {
	db *sql.DB
}

func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

const outcomeColumns = `id, serial_number, unit_id, result, is_valid, message,
	drug_name, manufacturer, batch_number, expiration_date,
	latitude, longitude, location, device_id, actor_id,
	warnings, possible_counterfeit, response_time_ms, verified_at`

func (s *PostgresHistoryStore) Append(ctx context.Context, o Outcome) error {
	query := fmt.Sprintf(`
		INSERT INTO verification_outcomes (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		outcomeColumns)

	var unitID any
	if o.UnitID != nil {
		unitID = *o.UnitID
	}
	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.SerialNumber, unitID, o.Result, o.IsValid, o.Message,
		o.DrugName, o.Manufacturer, o.BatchNumber, o.ExpirationDate,
		o.Latitude, o.Longitude, o.Location, o.DeviceID, o.ActorID,
		pq.Array(o.Warnings), o.PossibleCounterfeit, o.ResponseTime.Milliseconds(), o.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting verification outcome: %w", err)
	}
	return nil
}

func (s *PostgresHistoryStore) ListBySerialSince(ctx context.Context, serialNumber string, since time.Time) ([]Outcome, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM verification_outcomes
		WHERE serial_number = $1 AND verified_at >= $2
		ORDER BY verified_at DESC`, outcomeColumns)

	rows, err := s.db.QueryContext(ctx, query, serialNumber, since)
	if err != nil {
		return nil, fmt.Errorf("listing verification outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresHistoryStore) Stats(ctx context.Context, since time.Time) (Stats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_valid),
		       COUNT(*) FILTER (WHERE NOT is_valid),
		       COALESCE(AVG(response_time_ms), 0)
		FROM verification_outcomes
		WHERE verified_at >= $1`

	var stats Stats
	var avgMs float64
	err := s.db.QueryRowContext(ctx, query, since).Scan(&stats.Total, &stats.Valid, &stats.Invalid, &avgMs)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregating verification stats: %w", err)
	}
	stats.AverageLatency = time.Duration(avgMs * float64(time.Millisecond))
	return stats, nil
}

func scanOutcome(rows *sql.Rows) (Outcome, error) {
	var o Outcome
	var unitID uuid.NullUUID
	var expiration sql.NullTime
	var lat, lon sql.NullFloat64
	var warnings pq.StringArray
	var responseMs int64

	err := rows.Scan(
		&o.ID, &o.SerialNumber, &unitID, &o.Result, &o.IsValid, &o.Message,
		&o.DrugName, &o.Manufacturer, &o.BatchNumber, &expiration,
		&lat, &lon, &o.Location, &o.DeviceID, &o.ActorID,
		&warnings, &o.PossibleCounterfeit, &responseMs, &o.VerifiedAt,
	)
	if err != nil {
		return Outcome{}, fmt.Errorf("scanning verification outcome: %w", err)
	}
	if unitID.Valid {
		o.UnitID = &unitID.UUID
	}
	if expiration.Valid {
		t := expiration.Time
		o.ExpirationDate = &t
	}
	if lat.Valid {
		o.Latitude = &lat.Float64
	}
	if lon.Valid {
		o.Longitude = &lon.Float64
	}
	o.Warnings = warnings
	o.ResponseTime = time.Duration(responseMs) * time.Millisecond
	return o, nil
}
