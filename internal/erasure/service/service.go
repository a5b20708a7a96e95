package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nuca/internal/audit"
	"nuca/internal/erasure"
	"nuca/internal/platform/metrics"
	dErrors "nuca/pkg/domain-errors"
	"nuca/pkg/platform/tx"
)

// Service owns the user-facing half of the erasure workflow: creating a
// request, cancelling it within the grace window, and reporting its state.
// Execution belongs to the sweeper.
type Service struct {
	store   erasure.Store
	auditor *audit.Publisher
	uow     tx.Runner
	grace   time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source, used by grace-window tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store erasure.Store, auditor *audit.Publisher, uow tx.Runner, grace time.Duration, opts ...Option) *Service {
	s := &Service{
		store:   store,
		auditor: auditor,
		uow:     uow,
		grace:   grace,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create schedules a purge after the grace period. A user holds at most one
// active request; a second create while one is PENDING or EXECUTING fails
// with duplicate_request.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, actor string) (*erasure.Request, error) {
	now := s.now()
	req := &erasure.Request{
		ID:               uuid.New(),
		UserID:           userID,
		RequestedAt:      now,
		ScheduledPurgeAt: now.Add(s.grace),
		Status:           erasure.StatusPending,
		CascadeProgress:  make(map[string]time.Time),
	}

	err := s.uow.RunInTx(tx.WithUser(ctx, userID.String()), func(ctx context.Context) error {
		active, err := s.store.FindActiveByUser(ctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active erasure requests")
		}
		if active != nil {
			return dErrors.New(dErrors.CodeDuplicateRequest,
				"an erasure request is already "+statusWord(active.Status)+", cancel it before re-requesting")
		}
		if err := s.store.Create(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create erasure request")
		}
		return s.auditor.Emit(ctx, audit.Entry{
			UserID:       userID,
			Action:       audit.ActionErasureRequested,
			ResourceType: "erasure_request",
			ResourceID:   req.ID.String(),
			Actor:        actor,
		}, map[string]any{
			"scheduled_purge_at": req.ScheduledPurgeAt,
			"grace_period":       s.grace.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ErasureRequests.Inc()
	}
	return req, nil
}

// Cancel withdraws the user's pending request. Once execution has started the
// cascade runs to completion or explicit failure; cancellation is refused.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID, actor string) (*erasure.Request, error) {
	var cancelled *erasure.Request

	err := s.uow.RunInTx(tx.WithUser(ctx, userID.String()), func(ctx context.Context) error {
		active, err := s.store.FindActiveByUser(ctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active erasure requests")
		}
		if active == nil {
			return dErrors.New(dErrors.CodeInvalidState, "no pending erasure request to cancel, submit a new request first")
		}
		if active.Status != erasure.StatusPending {
			return dErrors.New(dErrors.CodeInvalidState,
				"erasure is already "+statusWord(active.Status)+" and can no longer be cancelled")
		}

		now := s.now()
		ok, err := s.store.Cancel(ctx, active.ID, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel erasure request")
		}
		if !ok {
			// Lost a race with the sweep claim.
			return dErrors.New(dErrors.CodeInvalidState, "erasure is already executing and can no longer be cancelled")
		}

		active.Status = erasure.StatusCancelled
		active.CancelledAt = &now
		cancelled = active

		return s.auditor.Emit(ctx, audit.Entry{
			UserID:       userID,
			Action:       audit.ActionErasureCancelled,
			ResourceType: "erasure_request",
			ResourceID:   active.ID.String(),
			Actor:        actor,
		}, map[string]any{"cancelled_at": now})
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Active returns the user's current active request, or (nil, nil).
func (s *Service) Active(ctx context.Context, userID uuid.UUID) (*erasure.Request, error) {
	return s.store.FindActiveByUser(ctx, userID)
}

func statusWord(st erasure.Status) string {
	switch st {
	case erasure.StatusPending:
		return "pending"
	case erasure.StatusExecuting:
		return "executing"
	case erasure.StatusCompleted:
		return "completed"
	case erasure.StatusCancelled:
		return "cancelled"
	case erasure.StatusFailed:
		return "failed"
	}
	return string(st)
}
