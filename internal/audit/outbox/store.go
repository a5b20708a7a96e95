package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Row is one pending outbox record awaiting publication.
type Row struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// Store reads and settles outbox rows.
type Store interface {
	FetchUnprocessed(ctx context.Context, limit int) ([]Row, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
}

// PostgresStore implements Store over the audit_outbox table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FetchUnprocessed(ctx context.Context, limit int) ([]Row, error) {
	query := `
		SELECT id, entry_id, payload, created_at
		FROM audit_outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.EntryID, &r.Payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_outbox SET processed_at = $2 WHERE id = $1`,
		id, processedAt,
	)
	if err != nil {
		return fmt.Errorf("mark outbox row processed: %w", err)
	}
	return nil
}
