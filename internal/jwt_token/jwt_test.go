package jwttoken_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	jwttoken "nuca/internal/jwt_token"
	dErrors "nuca/pkg/domain-errors"
)

type JWTSuite struct {
	suite.Suite
	service *jwttoken.JWTService
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTSuite))
}

func (s *JWTSuite) SetupTest() {
	s.service = jwttoken.NewJWTService("test-signing-key", "nuca", "nuca-api")
}

func (s *JWTSuite) TestGenerateAndValidateRoundTrip() {
	userID := uuid.New()

	token, err := s.service.GenerateAccessToken(userID, time.Hour)
	s.Require().NoError(err)
	s.NotEmpty(token)

	claims, err := s.service.ValidateToken(token)
	s.Require().NoError(err)
	s.Equal(userID.String(), claims.UserID)
}

func (s *JWTSuite) TestExpiredTokenRejected() {
	token, err := s.service.GenerateAccessToken(uuid.New(), -time.Minute)
	s.Require().NoError(err)

	_, err = s.service.ValidateToken(token)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Contains(err.Error(), "expired")
}

func (s *JWTSuite) TestWrongSigningKeyRejected() {
	other := jwttoken.NewJWTService("different-key", "nuca", "nuca-api")
	token, err := other.GenerateAccessToken(uuid.New(), time.Hour)
	s.Require().NoError(err)

	_, err = s.service.ValidateToken(token)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *JWTSuite) TestGarbageTokenRejected() {
	_, err := s.service.ValidateToken("not-a-jwt")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
