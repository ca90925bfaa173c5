package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pharmatrace/pkg/platform/sentinel"
)

// PostgresStore persists alerts in the alerts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const alertColumns = `id, alert_type, severity, message, related_entity_type, related_entity_id,
	acknowledged, acknowledged_by, acknowledged_at, created_at`

func (s *PostgresStore) Save(ctx context.Context, a Alert) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO alerts (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, alertColumns),
		a.ID, a.Type, a.Severity, a.Message, a.RelatedEntityType, a.RelatedEntityID,
		a.Acknowledged, nullIfEmpty(a.AcknowledgedBy), a.AcknowledgedAt, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Alert, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM alerts WHERE id = $1`, alertColumns), id)
	return scanAlert(row)
}

// Acknowledge flips the flag only when it is still clear, so double
// acknowledgement surfaces as a conflict instead of silently rewriting the
// acknowledging actor.
func (s *PostgresStore) Acknowledge(ctx context.Context, id uuid.UUID, actorID string) (Alert, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE alerts
		SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = NOW()
		WHERE id = $1 AND NOT acknowledged
		RETURNING %s`, alertColumns), id, actorID)

	a, err := scanAlert(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Either the alert does not exist or it was already acknowledged.
		if _, getErr := s.Get(ctx, id); getErr == nil {
			return Alert{}, sentinel.ErrConflict
		}
		return Alert{}, sentinel.ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) ListUnacknowledged(ctx context.Context) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM alerts WHERE NOT acknowledged ORDER BY created_at`, alertColumns))
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (Alert, error) {
	var a Alert
	var relatedID uuid.NullUUID
	var acknowledgedBy sql.NullString
	var acknowledgedAt sql.NullTime

	err := row.Scan(&a.ID, &a.Type, &a.Severity, &a.Message, &a.RelatedEntityType, &relatedID,
		&a.Acknowledged, &acknowledgedBy, &acknowledgedAt, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Alert{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Alert{}, fmt.Errorf("scanning alert: %w", err)
	}
	if relatedID.Valid {
		a.RelatedEntityID = &relatedID.UUID
	}
	a.AcknowledgedBy = acknowledgedBy.String
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		a.AcknowledgedAt = &t
	}
	return a, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
