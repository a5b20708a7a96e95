package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"nuca/internal/audit"
	"nuca/internal/consent"
	dErrors "nuca/pkg/domain-errors"
	"nuca/pkg/platform/tx"
)

type ConsentServiceSuite struct {
	suite.Suite

	ctx     context.Context
	store   *consent.InMemoryStore
	audits  *audit.InMemoryStore
	service *Service
	userID  uuid.UUID
}

func TestConsentServiceSuite(t *testing.T) {
	suite.Run(t, new(ConsentServiceSuite))
}

func (s *ConsentServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = consent.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()
	s.service = New(s.store, audit.NewPublisher(s.audits), tx.NewShardedRunner())
	s.userID = uuid.New()
}

func (s *ConsentServiceSuite) TestDefaultIsNotGranted() {
	granted, err := s.service.Get(s.ctx, s.userID, consent.TypeHealthDataProcessing)
	s.Require().NoError(err)
	s.False(granted)

	err = s.service.Require(s.ctx, s.userID, consent.TypeHealthDataProcessing)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeMissingConsent))
	s.Contains(err.Error(), string(consent.TypeHealthDataProcessing))
}

func (s *ConsentServiceSuite) TestSetGrantThenRequirePasses() {
	_, err := s.service.Set(s.ctx, s.userID, consent.TypeHealthDataProcessing, true, "1.0", "user")
	s.Require().NoError(err)

	s.Require().NoError(s.service.Require(s.ctx, s.userID, consent.TypeHealthDataProcessing))
}

func (s *ConsentServiceSuite) TestRevocationIsEffectiveImmediately() {
	_, err := s.service.Set(s.ctx, s.userID, consent.TypeAnalytics, true, "1.0", "user")
	s.Require().NoError(err)
	_, err = s.service.Set(s.ctx, s.userID, consent.TypeAnalytics, false, "1.0", "user")
	s.Require().NoError(err)

	err = s.service.Require(s.ctx, s.userID, consent.TypeAnalytics)
	s.True(dErrors.HasCode(err, dErrors.CodeMissingConsent))
}

func (s *ConsentServiceSuite) TestRepeatGrantStillAppendsAndAudits() {
	for i := 0; i < 2; i++ {
		_, err := s.service.Set(s.ctx, s.userID, consent.TypeMarketing, true, "1.0", "user")
		s.Require().NoError(err)
	}

	records, err := s.store.ListByUser(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Len(records, 2)

	entries, err := s.audits.ListByUser(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Len(entries, 2)
	for _, e := range entries {
		s.Equal(audit.ActionConsentChanged, e.Action)
	}
}

func (s *ConsentServiceSuite) TestSetRejectsUnknownType() {
	_, err := s.service.Set(s.ctx, s.userID, consent.Type("telemetry"), true, "1.0", "user")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidConsent))
}

func (s *ConsentServiceSuite) TestSetRequiresPolicyVersion() {
	_, err := s.service.Set(s.ctx, s.userID, consent.TypeAnalytics, true, "", "user")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ConsentServiceSuite) TestAuditDigestOmitsDecisionDetail() {
	_, err := s.service.Set(s.ctx, s.userID, consent.TypeAnalytics, true, "1.0", "user")
	s.Require().NoError(err)

	entries, err := s.audits.ListByUser(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.NotEmpty(entries[0].DetailDigest)
	s.NotContains(entries[0].DetailDigest, "analytics")
}

func (s *ConsentServiceSuite) TestEnforcementDisabledBypassesGating() {
	svc := New(s.store, audit.NewPublisher(s.audits), tx.NewShardedRunner(), WithEnforcement(false))
	s.NoError(svc.Require(s.ctx, s.userID, consent.TypeHealthDataProcessing))
}

func (s *ConsentServiceSuite) TestCurrentSynthesizesDefaults() {
	_, err := s.service.Set(s.ctx, s.userID, consent.TypeHealthDataProcessing, true, "2.0", "user")
	s.Require().NoError(err)

	current, err := s.service.Current(s.ctx, s.userID, "1.0")
	s.Require().NoError(err)
	s.Require().Len(current, len(consent.AllTypes()))

	byType := make(map[consent.Type]*consent.Record, len(current))
	for _, r := range current {
		byType[r.Type] = r
	}
	s.True(byType[consent.TypeHealthDataProcessing].Granted)
	s.Equal("2.0", byType[consent.TypeHealthDataProcessing].Version)
	s.False(byType[consent.TypeMarketing].Granted)
	s.Equal("1.0", byType[consent.TypeMarketing].Version)
}
