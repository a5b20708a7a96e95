package consent

import (
	"context"

	"github.com/google/uuid"
)

// Store persists consent records. Appends only; the single delete surface
// exists for the erasure cascade.
type Store interface {
	Append(ctx context.Context, record *Record) error
	// Latest returns the newest record for a (user, type) pair, or nil when
	// no explicit record exists yet.
	Latest(ctx context.Context, userID uuid.UUID, t Type) (*Record, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Record, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
