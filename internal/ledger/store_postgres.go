package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"pharmatrace/pkg/platform/sentinel"
	txcontext "pharmatrace/pkg/platform/tx"
)

// PostgresStore persists chain entries in PostgreSQL. The guarded INSERT
// rejects an append whose expected previous hash no longer matches the chain
// tip. Under READ COMMITTED the tip subquery cannot see a concurrent
// uncommitted insert, so the UNIQUE constraint on previous_hash is the real
// fence: the loser's insert fails with unique_violation, which surfaces as
// ErrConflict and is retried by the recorder against the new tip.
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

func (s *PostgresStore) Append(ctx context.Context, entry Entry, expectedPrev string) error {
	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal ledger payload: %w", err)
	}

	query := `
		INSERT INTO ledger_entries
			(id, action, entity_type, entity_id, actor_id, actor_username,
			 client_ip, user_agent, payload, previous_hash, current_hash, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		WHERE COALESCE(
			(SELECT current_hash FROM ledger_entries ORDER BY seq DESC LIMIT 1),
			'0'
		) = $10
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.ActorID,
		entry.ActorUsername,
		entry.ClientIP,
		entry.UserAgent,
		payloadJSON,
		entry.PreviousHash,
		entry.CurrentHash,
		entry.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

const entryColumns = `seq, id, action, entity_type, entity_id, actor_id, actor_username,
	client_ip, user_agent, payload, previous_hash, current_hash, created_at`

func (s *PostgresStore) Latest(ctx context.Context) (Entry, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries ORDER BY seq DESC LIMIT 1`)
	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("latest ledger entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return collectEntries(rows)
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE entity_type = $1 AND entity_id = $2 ORDER BY seq`,
		entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries by entity: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scan func(...any) error) (Entry, error) {
	var e Entry
	var payloadJSON []byte
	err := scan(&e.Seq, &e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.ActorID,
		&e.ActorUsername, &e.ClientIP, &e.UserAgent, &payloadJSON,
		&e.PreviousHash, &e.CurrentHash, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return Entry{}, fmt.Errorf("unmarshal ledger payload: %w", err)
		}
	}
	return e, nil
}
