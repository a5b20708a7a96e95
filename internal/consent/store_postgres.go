package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	txcontext "nuca/pkg/platform/tx"
)

// PostgresStore persists consent records in PostgreSQL. It joins any
// transaction carried in the context so the consent check and the gated
// operation share one atomic unit of work.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
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

func (s *PostgresStore) Append(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("consent record is required")
	}
	query := `
		INSERT INTO consent_records (id, user_id, consent_type, granted, version, recorded_at, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		record.ID,
		record.UserID,
		string(record.Type),
		record.Granted,
		record.Version,
		record.RecordedAt,
		record.Actor,
	)
	if err != nil {
		return fmt.Errorf("append consent record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, userID uuid.UUID, t Type) (*Record, error) {
	query := `
		SELECT id, user_id, consent_type, granted, version, recorded_at, actor
		FROM consent_records
		WHERE user_id = $1 AND consent_type = $2
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`
	record, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, userID, string(t)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest consent record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Record, error) {
	query := `
		SELECT id, user_id, consent_type, granted, version, recorded_at, actor
		FROM consent_records
		WHERE user_id = $1
		ORDER BY recorded_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list consent records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM consent_records WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete consent records by user: %w", err)
	}
	return nil
}

type row interface {
	Scan(dest ...any) error
}

func scanRecord(r row) (*Record, error) {
	var record Record
	var consentType string
	if err := r.Scan(
		&record.ID,
		&record.UserID,
		&consentType,
		&record.Granted,
		&record.Version,
		&record.RecordedAt,
		&record.Actor,
	); err != nil {
		return nil, err
	}
	record.Type = Type(consentType)
	return &record, nil
}
