package erasure

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	dErrors "nuca/pkg/domain-errors"
	txcontext "nuca/pkg/platform/tx"
)

// PostgresStore persists erasure requests in PostgreSQL. Conditional updates
// carry the state machine: a transition only succeeds when the row is still
// in the expected status, so concurrent sweeps race safely on Claim.
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

const requestColumns = `id, user_id, requested_at, scheduled_purge_at, status, cancelled_at, completed_at, cascade_progress`

func (s *PostgresStore) Create(ctx context.Context, req *Request) error {
	if req == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "erasure request is required")
	}
	progress, err := json.Marshal(req.CascadeProgress)
	if err != nil {
		return fmt.Errorf("marshal cascade progress: %w", err)
	}
	query := `
		INSERT INTO erasure_requests (id, user_id, requested_at, scheduled_purge_at, status, cascade_progress)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		req.ID,
		req.UserID,
		req.RequestedAt,
		req.ScheduledPurgeAt,
		string(req.Status),
		progress,
	)
	if err != nil {
		return fmt.Errorf("create erasure request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM erasure_requests WHERE id = $1`
	req, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "erasure request not found")
		}
		return nil, fmt.Errorf("get erasure request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM erasure_requests
		WHERE user_id = $1 AND status IN ('PENDING', 'EXECUTING')
		LIMIT 1
	`
	req, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active erasure request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) DuePending(ctx context.Context, now time.Time, limit int) ([]*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM erasure_requests
		WHERE status = 'PENDING' AND scheduled_purge_at <= $1
		ORDER BY scheduled_purge_at
		LIMIT $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due erasure requests: %w", err)
	}
	defer rows.Close()

	var due []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan erasure request: %w", err)
		}
		due = append(due, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate erasure requests: %w", err)
	}
	return due, nil
}

func (s *PostgresStore) Executing(ctx context.Context, limit int) ([]*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM erasure_requests
		WHERE status = 'EXECUTING'
		ORDER BY scheduled_purge_at
		LIMIT $1
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list executing erasure requests: %w", err)
	}
	defer rows.Close()

	var executing []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan erasure request: %w", err)
		}
		executing = append(executing, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate erasure requests: %w", err)
	}
	return executing, nil
}

func (s *PostgresStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.transition(ctx,
		`UPDATE erasure_requests SET status = 'EXECUTING' WHERE id = $1 AND status = 'PENDING'`,
		id,
	)
}

func (s *PostgresStore) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return s.transition(ctx,
		`UPDATE erasure_requests SET status = 'CANCELLED', cancelled_at = $2 WHERE id = $1 AND status = 'PENDING'`,
		id, at,
	)
}

func (s *PostgresStore) MarkTargetComplete(ctx context.Context, id uuid.UUID, target string, at time.Time) error {
	query := `
		UPDATE erasure_requests
		SET cascade_progress = cascade_progress || jsonb_build_object($2::text, $3::timestamptz)
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, id, target, at)
	if err != nil {
		return fmt.Errorf("mark cascade target complete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark cascade target complete: %w", err)
	}
	if affected == 0 {
		return dErrors.New(dErrors.CodeNotFound, "erasure request not found")
	}
	return nil
}

func (s *PostgresStore) Finish(ctx context.Context, id uuid.UUID, status Status, at time.Time) (bool, error) {
	if status != StatusCompleted && status != StatusFailed {
		return false, dErrors.New(dErrors.CodeInvalidState, "finish requires a terminal execution status")
	}
	var completedAt sql.NullTime
	if status == StatusCompleted {
		completedAt = sql.NullTime{Time: at, Valid: true}
	}
	return s.transition(ctx,
		`UPDATE erasure_requests SET status = $2, completed_at = $3 WHERE id = $1 AND status = 'EXECUTING'`,
		id, string(status), completedAt,
	)
}

func (s *PostgresStore) transition(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("erasure state transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("erasure state transition: %w", err)
	}
	return affected == 1, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanRequest(r row) (*Request, error) {
	var (
		req         Request
		status      string
		cancelledAt sql.NullTime
		completedAt sql.NullTime
		progress    []byte
	)
	if err := r.Scan(
		&req.ID,
		&req.UserID,
		&req.RequestedAt,
		&req.ScheduledPurgeAt,
		&status,
		&cancelledAt,
		&completedAt,
		&progress,
	); err != nil {
		return nil, err
	}
	req.Status = Status(status)
	if cancelledAt.Valid {
		t := cancelledAt.Time
		req.CancelledAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		req.CompletedAt = &t
	}
	req.CascadeProgress = make(map[string]time.Time)
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &req.CascadeProgress); err != nil {
			return nil, fmt.Errorf("decode cascade progress: %w", err)
		}
	}
	return &req, nil
}
