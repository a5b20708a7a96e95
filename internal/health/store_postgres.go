package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	dErrors "nuca/pkg/domain-errors"
	txcontext "nuca/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresProfileStore persists health profiles; envelope blobs land in bytea
// columns and are never inspected by SQL.
type PostgresProfileStore struct {
	db *sql.DB
}

func NewPostgresProfileStore(db *sql.DB) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

func (s *PostgresProfileStore) Create(ctx context.Context, profile *Profile) error {
	if profile == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "profile is required")
	}
	query := `
		INSERT INTO health_profiles
			(id, user_id, date_of_birth, hypertension, diabetes, heart_disease, kidney_disease, pregnancy, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		profile.ID,
		profile.UserID,
		profile.DateOfBirth,
		profile.Hypertension,
		profile.Diabetes,
		profile.HeartDisease,
		profile.KidneyDisease,
		profile.Pregnancy,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create health profile: %w", err)
	}
	return nil
}

func (s *PostgresProfileStore) GetByUser(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	query := `
		SELECT id, user_id, date_of_birth, hypertension, diabetes, heart_disease, kidney_disease, pregnancy, created_at, updated_at
		FROM health_profiles
		WHERE user_id = $1
	`
	var p Profile
	err := execer(ctx, s.db).QueryRowContext(ctx, query, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.DateOfBirth,
		&p.Hypertension,
		&p.Diabetes,
		&p.HeartDisease,
		&p.KidneyDisease,
		&p.Pregnancy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, fmt.Errorf("get health profile: %w", err)
	}
	return &p, nil
}

func (s *PostgresProfileStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := execer(ctx, s.db).ExecContext(ctx, `DELETE FROM health_profiles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete health profile: %w", err)
	}
	return nil
}

// PostgresFamilyStore persists family-member records.
type PostgresFamilyStore struct {
	db *sql.DB
}

func NewPostgresFamilyStore(db *sql.DB) *PostgresFamilyStore {
	return &PostgresFamilyStore{db: db}
}

func (s *PostgresFamilyStore) Add(ctx context.Context, member *FamilyMember) error {
	if member == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "family member is required")
	}
	query := `
		INSERT INTO family_members (id, user_id, name, relationship, date_of_birth, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		member.ID,
		member.UserID,
		member.Name,
		member.Relationship,
		member.DateOfBirth,
		member.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add family member: %w", err)
	}
	return nil
}

func (s *PostgresFamilyStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*FamilyMember, error) {
	query := `
		SELECT id, user_id, name, relationship, date_of_birth, created_at
		FROM family_members
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	var members []*FamilyMember
	for rows.Next() {
		var m FamilyMember
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Relationship, &m.DateOfBirth, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate family members: %w", err)
	}
	return members, nil
}

func (s *PostgresFamilyStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := execer(ctx, s.db).ExecContext(ctx, `DELETE FROM family_members WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete family members: %w", err)
	}
	return nil
}

// PostgresScanStore persists scan history.
type PostgresScanStore struct {
	db *sql.DB
}

func NewPostgresScanStore(db *sql.DB) *PostgresScanStore {
	return &PostgresScanStore{db: db}
}

func (s *PostgresScanStore) Add(ctx context.Context, scan *ScanRecord) error {
	if scan == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "scan record is required")
	}
	query := `
		INSERT INTO scan_history (id, user_id, barcode, product_name, scanned_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query, scan.ID, scan.UserID, scan.Barcode, scan.ProductName, scan.ScannedAt)
	if err != nil {
		return fmt.Errorf("add scan record: %w", err)
	}
	return nil
}

func (s *PostgresScanStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*ScanRecord, error) {
	query := `
		SELECT id, user_id, barcode, product_name, scanned_at
		FROM scan_history
		WHERE user_id = $1
		ORDER BY scanned_at
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list scan history: %w", err)
	}
	defer rows.Close()

	var scans []*ScanRecord
	for rows.Next() {
		var r ScanRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Barcode, &r.ProductName, &r.ScannedAt); err != nil {
			return nil, fmt.Errorf("scan scan record: %w", err)
		}
		scans = append(scans, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan history: %w", err)
	}
	return scans, nil
}

func (s *PostgresScanStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := execer(ctx, s.db).ExecContext(ctx, `DELETE FROM scan_history WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete scan history: %w", err)
	}
	return nil
}

// PostgresConsumptionStore persists consumption logs.
type PostgresConsumptionStore struct {
	db *sql.DB
}

func NewPostgresConsumptionStore(db *sql.DB) *PostgresConsumptionStore {
	return &PostgresConsumptionStore{db: db}
}

func (s *PostgresConsumptionStore) Add(ctx context.Context, log *ConsumptionLog) error {
	if log == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "consumption log is required")
	}
	query := `
		INSERT INTO consumption_logs (id, user_id, product_name, servings, consumed_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query, log.ID, log.UserID, log.ProductName, log.Servings, log.ConsumedAt)
	if err != nil {
		return fmt.Errorf("add consumption log: %w", err)
	}
	return nil
}

func (s *PostgresConsumptionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*ConsumptionLog, error) {
	query := `
		SELECT id, user_id, product_name, servings, consumed_at
		FROM consumption_logs
		WHERE user_id = $1
		ORDER BY consumed_at
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list consumption logs: %w", err)
	}
	defer rows.Close()

	var logs []*ConsumptionLog
	for rows.Next() {
		var l ConsumptionLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductName, &l.Servings, &l.ConsumedAt); err != nil {
			return nil, fmt.Errorf("scan consumption log: %w", err)
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consumption logs: %w", err)
	}
	return logs, nil
}

func (s *PostgresConsumptionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := execer(ctx, s.db).ExecContext(ctx, `DELETE FROM consumption_logs WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete consumption logs: %w", err)
	}
	return nil
}
