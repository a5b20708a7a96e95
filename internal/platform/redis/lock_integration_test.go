//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	platformredis "nuca/internal/platform/redis"
	"nuca/pkg/testutil/containers"
)

type LockSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	client *platformredis.Client
}

func TestLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(LockSuite))
}

func (s *LockSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.client = &platformredis.Client{Client: s.redis.Client}
}

func (s *LockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *LockSuite) TestSecondHolderIsRejected() {
	ctx := context.Background()
	first := platformredis.NewLock(s.client, "sweep-lock", time.Minute)
	second := platformredis.NewLock(s.client, "sweep-lock", time.Minute)

	ok, err := first.Acquire(ctx)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = second.Acquire(ctx)
	s.Require().NoError(err)
	s.False(ok, "lock is held by the first instance")

	s.Require().NoError(first.Release(ctx))

	ok, err = second.Acquire(ctx)
	s.Require().NoError(err)
	s.True(ok, "released lock is free for the next instance")
}

// Releasing after the TTL expired and another instance took over must not
// drop the new holder's lock.
func (s *LockSuite) TestStaleHolderCannotReleaseNewOwner() {
	ctx := context.Background()
	stale := platformredis.NewLock(s.client, "sweep-lock", 100*time.Millisecond)
	fresh := platformredis.NewLock(s.client, "sweep-lock", time.Minute)

	ok, err := stale.Acquire(ctx)
	s.Require().NoError(err)
	s.True(ok)

	time.Sleep(200 * time.Millisecond)

	ok, err = fresh.Acquire(ctx)
	s.Require().NoError(err)
	s.True(ok, "expired lock is acquirable")

	s.Require().NoError(stale.Release(ctx))

	ok, err = platformredis.NewLock(s.client, "sweep-lock", time.Minute).Acquire(ctx)
	s.Require().NoError(err)
	s.False(ok, "fresh holder's lock must survive the stale release")
}

func (s *LockSuite) TestLocksOnDifferentKeysAreIndependent() {
	ctx := context.Background()
	a := platformredis.NewLock(s.client, "sweep-lock", time.Minute)
	b := platformredis.NewLock(s.client, "retention-lock", time.Minute)

	ok, err := a.Acquire(ctx)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = b.Acquire(ctx)
	s.Require().NoError(err)
	s.True(ok)
}
