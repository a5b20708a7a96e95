package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nuca/internal/audit"
	"nuca/internal/erasure"
	"nuca/internal/platform/metrics"
	dErrors "nuca/pkg/domain-errors"
	"nuca/pkg/platform/tx"
)

// PurgeFunc removes one cascade target's data for a user. Purges must be
// idempotent: a resumed cascade may re-run the step whose completion marker
// was not yet durable.
type PurgeFunc func(ctx context.Context, userID uuid.UUID) error

// Cascade maps every cascade target name to its purge function.
type Cascade map[string]PurgeFunc

// Locker is an optional cross-instance leader lock for the sweep loop.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Result summarizes one sweep run.
type Result struct {
	Claimed   int
	Resumed   int
	Completed int
	Failed    int
}

// Sweeper executes due erasure requests: it claims PENDING requests whose
// grace period has expired, walks the cascade in order, persists per-target
// progress, and drives each request to COMPLETED or FAILED. Interrupted
// cascades are resumed from the first incomplete target on the next run.
type Sweeper struct {
	store   erasure.Store
	auditor *audit.Publisher
	uow     tx.Runner
	cascade Cascade

	interval    time.Duration
	batchSize   int
	maxAttempts int
	retryDelay  time.Duration
	locker      Locker
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures the Sweeper.
type Option func(*Sweeper)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithBatchSize caps the number of requests processed per run.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRetry sets transient-fault retry behavior per cascade target.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(s *Sweeper) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		if delay >= 0 {
			s.retryDelay = delay
		}
	}
}

// WithLocker enables a cross-instance leader lock; a run that fails to
// acquire it is skipped.
func WithLocker(l Locker) Option {
	return func(s *Sweeper) {
		s.locker = l
	}
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source, used by grace-window tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// New constructs a Sweeper. The cascade must cover every target in the fixed
// deletion order.
func New(store erasure.Store, auditor *audit.Publisher, uow tx.Runner, cascade Cascade, opts ...Option) (*Sweeper, error) {
	if store == nil || auditor == nil || uow == nil {
		return nil, fmt.Errorf("store, auditor, and uow are required")
	}
	for _, target := range erasure.TargetOrder() {
		if cascade[target] == nil {
			return nil, fmt.Errorf("cascade is missing target %s", target)
		}
	}
	s := &Sweeper{
		store:       store,
		auditor:     auditor,
		uow:         uow,
		cascade:     cascade,
		interval:    time.Minute,
		batchSize:   50,
		maxAttempts: 3,
		retryDelay:  time.Second,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "erasure sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep: resume interrupted cascades first, then
// claim and execute newly due requests.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	if s.locker != nil {
		held, err := s.locker.Acquire(ctx)
		if err != nil {
			return res, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !held {
			return res, nil
		}
		defer func() {
			if err := s.locker.Release(ctx); err != nil {
				s.logger.ErrorContext(ctx, "release sweep lock failed", "error", err)
			}
		}()
	}

	if s.metrics != nil {
		s.metrics.ErasureSweepRuns.Inc()
	}

	interrupted, err := s.store.Executing(ctx, s.batchSize)
	if err != nil {
		return res, fmt.Errorf("list interrupted requests: %w", err)
	}
	for _, req := range interrupted {
		res.Resumed++
		s.finishOrFail(ctx, req, &res)
	}

	due, err := s.store.DuePending(ctx, s.now(), s.batchSize)
	if err != nil {
		return res, fmt.Errorf("list due requests: %w", err)
	}
	for _, req := range due {
		claimed, err := s.store.Claim(ctx, req.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "erasure claim failed", "request_id", req.ID, "error", err)
			continue
		}
		if !claimed {
			// Another sweep run (or a cancel) won the race.
			continue
		}
		res.Claimed++
		if s.metrics != nil {
			s.metrics.ErasureClaims.Inc()
		}
		req.Status = erasure.StatusExecuting
		s.finishOrFail(ctx, req, &res)
	}

	return res, nil
}

func (s *Sweeper) finishOrFail(ctx context.Context, req *erasure.Request, res *Result) {
	if err := s.execute(ctx, req); err != nil {
		res.Failed++
		s.logger.ErrorContext(ctx, "erasure cascade failed",
			"request_id", req.ID, "user_id", req.UserID, "error", err)
		s.fail(ctx, req, err)
		return
	}
	res.Completed++
	s.logger.InfoContext(ctx, "erasure completed", "request_id", req.ID, "user_id", req.UserID)
}

// execute walks the cascade from the first incomplete target. Each target's
// purge, its progress marker, and its audit entry commit in one unit of work,
// so a crash between targets resumes without re-processing completed steps.
func (s *Sweeper) execute(ctx context.Context, req *erasure.Request) error {
	for _, target := range erasure.TargetOrder() {
		if req.TargetDone(target) {
			continue
		}
		if err := s.purgeTarget(ctx, req, target); err != nil {
			return fmt.Errorf("cascade target %s: %w", target, err)
		}
	}
	return s.complete(ctx, req)
}

func (s *Sweeper) purgeTarget(ctx context.Context, req *erasure.Request, target string) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.uow.RunInTx(tx.WithUser(ctx, req.UserID.String()), func(ctx context.Context) error {
			if err := s.cascade[target](ctx, req.UserID); err != nil {
				return err
			}
			completedAt := s.now()
			if err := s.store.MarkTargetComplete(ctx, req.ID, target, completedAt); err != nil {
				return err
			}
			req.CascadeProgress[target] = completedAt
			return s.auditor.Emit(ctx, audit.Entry{
				UserID:       req.UserID,
				Action:       audit.ActionErasureStepCompleted,
				ResourceType: target,
				ResourceID:   req.ID.String(),
				Actor:        "system",
			}, map[string]any{"target": target, "attempt": attempt})
		})
		if err == nil {
			return nil
		}
		if !transient(err) {
			return err
		}
		if attempt < s.maxAttempts {
			select {
			case <-time.After(s.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

// complete transitions to COMPLETED. The conditional Finish guarantees exactly
// one ERASURE_COMPLETED entry per request even if two sweeps resumed it.
func (s *Sweeper) complete(ctx context.Context, req *erasure.Request) error {
	return s.uow.RunInTx(tx.WithUser(ctx, req.UserID.String()), func(ctx context.Context) error {
		ok, err := s.store.Finish(ctx, req.ID, erasure.StatusCompleted, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if s.metrics != nil {
			s.metrics.ErasureCompleted.Inc()
		}
		return s.auditor.Emit(ctx, audit.Entry{
			UserID:       req.UserID,
			Action:       audit.ActionErasureCompleted,
			ResourceType: "erasure_request",
			ResourceID:   req.ID.String(),
			Actor:        "system",
		}, nil)
	})
}

func (s *Sweeper) fail(ctx context.Context, req *erasure.Request, cause error) {
	err := s.uow.RunInTx(tx.WithUser(ctx, req.UserID.String()), func(ctx context.Context) error {
		ok, err := s.store.Finish(ctx, req.ID, erasure.StatusFailed, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if s.metrics != nil {
			s.metrics.ErasureFailed.Inc()
		}
		return s.auditor.Emit(ctx, audit.Entry{
			UserID:       req.UserID,
			Action:       audit.ActionErasureFailed,
			ResourceType: "erasure_request",
			ResourceID:   req.ID.String(),
			Actor:        "system",
		}, map[string]any{"error": cause.Error()})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "marking erasure failed did not persist",
			"request_id", req.ID, "error", err)
	}
}

// transient reports whether an error is worth retrying. Domain errors signal
// unrecoverable faults except timeouts; everything else (driver errors,
// network) is retried up to the attempt budget.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return dErr.Code == dErrors.CodeTimeout
	}
	return true
}
