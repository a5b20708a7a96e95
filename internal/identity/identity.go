package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "nuca/pkg/domain-errors"
	txcontext "nuca/pkg/platform/tx"
)

// User is the authentication identity row. Registration and session
// management live with the surrounding application; this store exists so the
// export can include the account identity and the erasure cascade can remove
// it as its final target.
type User struct {
	ID        uuid.UUID
	Email     string
	CreatedAt time.Time
}

// Store reads and deletes authentication identities. Rows are written by the
// surrounding application, never by this subsystem.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// InMemoryStore keeps identities in memory, seeded at construction.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*User
}

func NewInMemoryStore(seed ...*User) *InMemoryStore {
	users := make(map[uuid.UUID]*User, len(seed))
	for _, u := range seed {
		cp := *u
		users[u.ID] = &cp
	}
	return &InMemoryStore{users: users}
}

func (s *InMemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	cp := *user
	return &cp, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

// PostgresStore persists identities in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id, email, created_at FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
