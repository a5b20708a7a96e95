package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"nuca/internal/audit"
	"nuca/internal/erasure"
	dErrors "nuca/pkg/domain-errors"
	"nuca/pkg/platform/tx"
)

type ErasureServiceSuite struct {
	suite.Suite

	ctx     context.Context
	store   *erasure.InMemoryStore
	audits  *audit.InMemoryStore
	service *Service
	userID  uuid.UUID
	now     time.Time
}

func TestErasureServiceSuite(t *testing.T) {
	suite.Run(t, new(ErasureServiceSuite))
}

func (s *ErasureServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = erasure.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.service = New(s.store, audit.NewPublisher(s.audits), tx.NewShardedRunner(),
		30*24*time.Hour,
		WithClock(func() time.Time { return s.now }),
	)
	s.userID = uuid.New()
}

func (s *ErasureServiceSuite) TestCreateSchedulesPurgeAfterGracePeriod() {
	req, err := s.service.Create(s.ctx, s.userID, "user")
	s.Require().NoError(err)

	s.Equal(erasure.StatusPending, req.Status)
	s.Equal(s.now, req.RequestedAt)
	s.Equal(s.now.Add(30*24*time.Hour), req.ScheduledPurgeAt)

	entries, err := s.audits.ListByUser(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionErasureRequested, entries[0].Action)
}

func (s *ErasureServiceSuite) TestSecondCreateWhileActiveIsRejected() {
	_, err := s.service.Create(s.ctx, s.userID, "user")
	s.Require().NoError(err)

	_, err = s.service.Create(s.ctx, s.userID, "user")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateRequest))
	s.Contains(err.Error(), "cancel")
}

func (s *ErasureServiceSuite) TestCancelWithinGraceWindow() {
	created, err := s.service.Create(s.ctx, s.userID, "user")
	s.Require().NoError(err)

	s.now = s.now.Add(5 * 24 * time.Hour)
	cancelled, err := s.service.Cancel(s.ctx, s.userID, "user")
	s.Require().NoError(err)
	s.Equal(created.ID, cancelled.ID)
	s.Equal(erasure.StatusCancelled, cancelled.Status)
	s.Require().NotNil(cancelled.CancelledAt)
	s.Equal(s.now, *cancelled.CancelledAt)

	// The slot frees up for a fresh request.
	_, err = s.service.Create(s.ctx, s.userID, "user")
	s.NoError(err)
}

func (s *ErasureServiceSuite) TestCancelTwiceIsRejected() {
	_, err := s.service.Create(s.ctx, s.userID, "user")
	s.Require().NoError(err)
	_, err = s.service.Cancel(s.ctx, s.userID, "user")
	s.Require().NoError(err)

	_, err = s.service.Cancel(s.ctx, s.userID, "user")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ErasureServiceSuite) TestCancelAfterClaimIsRejected() {
	req, err := s.service.Create(s.ctx, s.userID, "user")
	s.Require().NoError(err)

	claimed, err := s.store.Claim(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().True(claimed)

	_, err = s.service.Cancel(s.ctx, s.userID, "user")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Contains(err.Error(), "executing")
}

func (s *ErasureServiceSuite) TestActiveReturnsNilWhenNoneExists() {
	active, err := s.service.Active(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Nil(active)
}
