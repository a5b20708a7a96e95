package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"nuca/internal/audit"
	"nuca/internal/consent"
	"nuca/internal/erasure"
	"nuca/internal/health"
	"nuca/internal/identity"
	dErrors "nuca/pkg/domain-errors"
	"nuca/pkg/platform/tx"
)

// recordingCascade counts purges per target and can inject failures.
type recordingCascade struct {
	mu     sync.Mutex
	purged map[string]int
	order  []string
	fail   map[string]error
	failN  map[string]int // fail this many times, then succeed
}

func newRecordingCascade() *recordingCascade {
	return &recordingCascade{
		purged: make(map[string]int),
		fail:   make(map[string]error),
		failN:  make(map[string]int),
	}
}

func (c *recordingCascade) cascade() Cascade {
	out := make(Cascade)
	for _, target := range erasure.TargetOrder() {
		target := target
		out[target] = func(ctx context.Context, userID uuid.UUID) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			if n := c.failN[target]; n > 0 {
				c.failN[target] = n - 1
				return dErrors.New(dErrors.CodeTimeout, "transient fault")
			}
			if err := c.fail[target]; err != nil {
				return err
			}
			c.purged[target]++
			c.order = append(c.order, target)
			return nil
		}
	}
	return out
}

func (c *recordingCascade) count(target string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purged[target]
}

type SweeperSuite struct {
	suite.Suite

	ctx     context.Context
	store   *erasure.InMemoryStore
	audits  *audit.InMemoryStore
	auditor *audit.Publisher
	targets *recordingCascade
	userID  uuid.UUID
	now     time.Time
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = erasure.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()
	s.auditor = audit.NewPublisher(s.audits)
	s.targets = newRecordingCascade()
	s.userID = uuid.New()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SweeperSuite) newSweeper(opts ...Option) *Sweeper {
	base := []Option{
		WithClock(func() time.Time { return s.now }),
		WithRetry(3, 0),
	}
	sw, err := New(s.store, s.auditor, tx.NewShardedRunner(), s.targets.cascade(), append(base, opts...)...)
	s.Require().NoError(err)
	return sw
}

func (s *SweeperSuite) seedRequest(purgeAt time.Time) *erasure.Request {
	req := &erasure.Request{
		ID:               uuid.New(),
		UserID:           s.userID,
		RequestedAt:      purgeAt.Add(-30 * 24 * time.Hour),
		ScheduledPurgeAt: purgeAt,
		Status:           erasure.StatusPending,
		CascadeProgress:  make(map[string]time.Time),
	}
	s.Require().NoError(s.store.Create(s.ctx, req))
	return req
}

func (s *SweeperSuite) actionCount(action audit.Action) int {
	entries, err := s.audits.ListByUser(s.ctx, s.userID)
	s.Require().NoError(err)
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func (s *SweeperSuite) TestRequestBeforePurgeTimeIsLeftAlone() {
	req := s.seedRequest(s.now.Add(24 * time.Hour))

	res, err := s.newSweeper().RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(res.Claimed)

	got, err := s.store.GetByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(erasure.StatusPending, got.Status)
	s.Zero(s.targets.count(erasure.TargetProfile))
}

func (s *SweeperSuite) TestDueRequestRunsFullCascade() {
	req := s.seedRequest(s.now.Add(-time.Minute))

	res, err := s.newSweeper().RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Claimed)
	s.Equal(1, res.Completed)

	got, err := s.store.GetByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(erasure.StatusCompleted, got.Status)
	s.Require().NotNil(got.CompletedAt)

	// Fixed dependency order, each target exactly once.
	s.Equal(erasure.TargetOrder(), s.targets.order)
	for _, target := range erasure.TargetOrder() {
		s.Equal(1, s.targets.count(target))
		s.True(got.TargetDone(target))
	}

	s.Equal(len(erasure.TargetOrder()), s.actionCount(audit.ActionErasureStepCompleted))
	s.Equal(1, s.actionCount(audit.ActionErasureCompleted))
}

func (s *SweeperSuite) TestInterruptedCascadeResumesWithoutReprocessing() {
	req := s.seedRequest(s.now.Add(-time.Minute))

	// Simulate a crash: claimed, first two targets durable, then stopped.
	claimed, err := s.store.Claim(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().True(claimed)
	s.Require().NoError(s.store.MarkTargetComplete(s.ctx, req.ID, erasure.TargetFamilyMembers, s.now))
	s.Require().NoError(s.store.MarkTargetComplete(s.ctx, req.ID, erasure.TargetScanHistory, s.now))

	res, err := s.newSweeper().RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Resumed)
	s.Equal(1, res.Completed)

	got, err := s.store.GetByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(erasure.StatusCompleted, got.Status)

	s.Zero(s.targets.count(erasure.TargetFamilyMembers))
	s.Zero(s.targets.count(erasure.TargetScanHistory))
	s.Equal(1, s.targets.count(erasure.TargetConsumptionLogs))
	s.Equal(1, s.targets.count(erasure.TargetUserIdentity))
	s.Equal(1, s.actionCount(audit.ActionErasureCompleted))
}

func (s *SweeperSuite) TestTransientFaultIsRetried() {
	s.seedRequest(s.now.Add(-time.Minute))
	s.targets.failN[erasure.TargetConsentRecords] = 2

	res, err := s.newSweeper().RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Completed)
	s.Zero(res.Failed)
	s.Equal(1, s.targets.count(erasure.TargetConsentRecords))
}

func (s *SweeperSuite) TestUnrecoverableFaultMarksFailed() {
	req := s.seedRequest(s.now.Add(-time.Minute))
	s.targets.fail[erasure.TargetProfile] = dErrors.New(dErrors.CodeInvariantViolation, "orphaned rows")

	res, err := s.newSweeper().RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Failed)
	s.Zero(res.Completed)

	got, err := s.store.GetByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(erasure.StatusFailed, got.Status)

	// Targets before the failing one still completed and stay marked.
	s.True(got.TargetDone(erasure.TargetConsentRecords))
	s.False(got.TargetDone(erasure.TargetProfile))
	s.Zero(s.targets.count(erasure.TargetUserIdentity))
	s.Equal(1, s.actionCount(audit.ActionErasureFailed))
	s.Zero(s.actionCount(audit.ActionErasureCompleted))
}

func (s *SweeperSuite) TestRetryBudgetExhaustionMarksFailed() {
	req := s.seedRequest(s.now.Add(-time.Minute))
	s.targets.failN[erasure.TargetFamilyMembers] = 10

	res, err := s.newSweeper().RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Failed)

	got, err := s.store.GetByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(erasure.StatusFailed, got.Status)
}

func (s *SweeperSuite) TestConcurrentSweepsClaimEachRequestOnce() {
	s.seedRequest(s.now.Add(-time.Minute))

	a := s.newSweeper()
	b := s.newSweeper()

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, sw := range []*Sweeper{a, b} {
		wg.Add(1)
		go func(i int, sw *Sweeper) {
			defer wg.Done()
			res, err := sw.RunOnce(s.ctx)
			s.NoError(err)
			results[i] = res
		}(i, sw)
	}
	wg.Wait()

	s.Equal(1, results[0].Claimed+results[1].Claimed)
	s.Equal(1, s.actionCount(audit.ActionErasureCompleted))
}

// TestCompletedCascadePurgesEveryStore wires the cascade to real stores, the
// same way the server does, and checks that a completed request leaves no
// retrievable data behind for that user while other users are untouched.
func (s *SweeperSuite) TestCompletedCascadePurgesEveryStore() {
	ctx := s.ctx
	other := uuid.New()

	profiles := health.NewInMemoryProfileStore()
	family := health.NewInMemoryFamilyStore()
	scans := health.NewInMemoryScanStore()
	logs := health.NewInMemoryConsumptionStore()
	consents := consent.NewInMemoryStore()
	users := identity.NewInMemoryStore(
		&identity.User{ID: s.userID, Email: "erased@example.com", CreatedAt: s.now},
		&identity.User{ID: other, Email: "kept@example.com", CreatedAt: s.now},
	)

	for _, userID := range []uuid.UUID{s.userID, other} {
		s.Require().NoError(profiles.Create(ctx, &health.Profile{ID: uuid.New(), UserID: userID}))
		s.Require().NoError(family.Add(ctx, &health.FamilyMember{ID: uuid.New(), UserID: userID, Name: "kid"}))
		s.Require().NoError(scans.Add(ctx, &health.ScanRecord{ID: uuid.New(), UserID: userID, Barcode: "737628064502"}))
		s.Require().NoError(logs.Add(ctx, &health.ConsumptionLog{ID: uuid.New(), UserID: userID, ProductName: "noodles"}))
		s.Require().NoError(consents.Append(ctx, &consent.Record{
			ID: uuid.New(), UserID: userID, Type: consent.TypeHealthDataProcessing,
			Granted: true, Version: "v1", RecordedAt: s.now, Actor: userID.String(),
		}))
	}

	cascade := Cascade{
		erasure.TargetFamilyMembers:   family.DeleteByUser,
		erasure.TargetScanHistory:     scans.DeleteByUser,
		erasure.TargetConsumptionLogs: logs.DeleteByUser,
		erasure.TargetConsentRecords:  consents.DeleteByUser,
		erasure.TargetProfile:         profiles.DeleteByUser,
		erasure.TargetUserIdentity:    users.Delete,
	}
	sw, err := New(s.store, s.auditor, tx.NewShardedRunner(), cascade,
		WithClock(func() time.Time { return s.now }), WithRetry(3, 0))
	s.Require().NoError(err)

	req := s.seedRequest(s.now.Add(-time.Minute))

	res, err := sw.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Completed)

	got, err := s.store.GetByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(erasure.StatusCompleted, got.Status)

	_, err = profiles.GetByUser(ctx, s.userID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	members, err := family.ListByUser(ctx, s.userID)
	s.Require().NoError(err)
	s.Empty(members)
	history, err := scans.ListByUser(ctx, s.userID)
	s.Require().NoError(err)
	s.Empty(history)
	meals, err := logs.ListByUser(ctx, s.userID)
	s.Require().NoError(err)
	s.Empty(meals)
	records, err := consents.ListByUser(ctx, s.userID)
	s.Require().NoError(err)
	s.Empty(records)
	_, err = users.GetByID(ctx, s.userID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	// The other account's data survives the cascade untouched.
	_, err = profiles.GetByUser(ctx, other)
	s.Require().NoError(err)
	members, err = family.ListByUser(ctx, other)
	s.Require().NoError(err)
	s.Len(members, 1)
	records, err = consents.ListByUser(ctx, other)
	s.Require().NoError(err)
	s.Len(records, 1)
	_, err = users.GetByID(ctx, other)
	s.Require().NoError(err)

	s.Equal(1, s.actionCount(audit.ActionErasureCompleted))
}

func (s *SweeperSuite) TestMissingCascadeTargetIsRejected() {
	cascade := s.targets.cascade()
	delete(cascade, erasure.TargetUserIdentity)

	_, err := New(s.store, s.auditor, tx.NewShardedRunner(), cascade)
	s.Require().Error(err)
	s.Contains(err.Error(), erasure.TargetUserIdentity)
}
