package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"nuca/internal/identity"
	dErrors "nuca/pkg/domain-errors"
)

type IdentitySuite struct {
	suite.Suite
}

func TestIdentitySuite(t *testing.T) {
	suite.Run(t, new(IdentitySuite))
}

func (s *IdentitySuite) TestGetSeededUser() {
	ctx := context.Background()
	user := &identity.User{ID: uuid.New(), Email: "a@example.com", CreatedAt: time.Now().UTC()}
	store := identity.NewInMemoryStore(user)

	got, err := store.GetByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(user.Email, got.Email)
}

func (s *IdentitySuite) TestGetUnknownUserIsNotFound() {
	store := identity.NewInMemoryStore()

	_, err := store.GetByID(context.Background(), uuid.New())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// Delete is the erasure cascade's final target; deleting an absent identity
// must succeed so a resumed cascade stays idempotent.
func (s *IdentitySuite) TestDeleteIsIdempotent() {
	ctx := context.Background()
	user := &identity.User{ID: uuid.New(), Email: "a@example.com", CreatedAt: time.Now().UTC()}
	store := identity.NewInMemoryStore(user)

	s.Require().NoError(store.Delete(ctx, user.ID))
	s.Require().NoError(store.Delete(ctx, user.ID))

	_, err := store.GetByID(ctx, user.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
