package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	txcontext "nuca/pkg/platform/tx"
)

// PostgresStore persists audit entries using the transactional outbox pattern:
// each append writes the immutable audit_entries row plus an outbox row in the
// caller's transaction. The outbox worker later publishes to Kafka and marks
// the row processed, so downstream consumers see exactly the committed trail.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
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

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id,omitempty"`
	Action       string `json:"action"`
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	Actor        string `json:"actor,omitempty"`
	OccurredAt   string `json:"occurred_at"`
	DetailDigest string `json:"detail_digest,omitempty"`
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	exec := s.execer(ctx)

	query := `
		INSERT INTO audit_entries (
			id, user_id, action, resource_type, resource_id,
			actor, occurred_at, detail_digest
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var userID *uuid.UUID
	if entry.UserID != uuid.Nil {
		uid := entry.UserID
		userID = &uid
	}
	_, err := exec.ExecContext(ctx, query,
		entry.ID,
		userID,
		string(entry.Action),
		entry.ResourceType,
		entry.ResourceID,
		entry.Actor,
		entry.OccurredAt,
		entry.DetailDigest,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	payload := outboxPayload{
		ID:           entry.ID.String(),
		Action:       string(entry.Action),
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Actor:        entry.Actor,
		OccurredAt:   entry.OccurredAt.Format(time.RFC3339Nano),
		DetailDigest: entry.DetailDigest,
	}
	if entry.UserID != uuid.Nil {
		payload.UserID = entry.UserID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	outboxQuery := `
		INSERT INTO audit_outbox (id, entry_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := exec.ExecContext(ctx, outboxQuery, uuid.New(), entry.ID, payloadBytes, time.Now()); err != nil {
		return fmt.Errorf("insert audit outbox entry: %w", err)
	}
	return nil
}

// DeleteOlderThan removes entries past the retention period. This is the one
// sanctioned deletion path; application code never deletes audit entries.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM audit_entries WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired audit entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired audit entries: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	query := `
		SELECT id, user_id, action, resource_type, resource_id,
			   actor, occurred_at, detail_digest
		FROM audit_entries
		WHERE user_id = $1
		ORDER BY occurred_at DESC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry  Entry
			userID *uuid.UUID
			action string
		)
		err := rows.Scan(
			&entry.ID,
			&userID,
			&action,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.Actor,
			&entry.OccurredAt,
			&entry.DetailDigest,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = Action(action)
		if userID != nil {
			entry.UserID = *userID
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
