package audit

import (
	"context"

	"github.com/google/uuid"
)

// Store persists audit entries. Implementations must be append-only:
// no update or delete surface exists on this interface.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error)
}
