package erasure

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists erasure requests and their state machine transitions.
// Conditional transitions (Claim, Cancel, Finish) report false instead of an
// error when the request was not in the expected state, so racing callers can
// skip rather than fail.
type Store interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// FindActiveByUser returns the user's PENDING or EXECUTING request, or
	// (nil, nil) when none exists.
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*Request, error)

	// DuePending returns PENDING requests whose scheduled purge time has
	// passed, oldest first.
	DuePending(ctx context.Context, now time.Time, limit int) ([]*Request, error)

	// Executing returns requests already claimed but not yet finished, so a
	// sweep can resume cascades interrupted by a crash.
	Executing(ctx context.Context, limit int) ([]*Request, error)

	// Claim transitions PENDING to EXECUTING in one atomic step. Exactly one
	// of any number of concurrent claimants observes true.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// Cancel transitions PENDING to CANCELLED.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// MarkTargetComplete records a cascade target's completion marker. It is
	// durable before the cascade moves to the next target.
	MarkTargetComplete(ctx context.Context, id uuid.UUID, target string, at time.Time) error

	// Finish transitions EXECUTING to COMPLETED or FAILED.
	Finish(ctx context.Context, id uuid.UUID, status Status, at time.Time) (bool, error)
}
