package tx

import (
	"context"
	"sync"
	"time"

	dErrors "nuca/pkg/domain-errors"
)

// numShards spreads in-memory transactions across mutexes hashed by user ID,
// reducing contention under concurrent load while keeping per-user operations
// serialized.
const numShards = 128

// defaultTimeout is the maximum duration for an in-memory transaction.
const defaultTimeout = 5 * time.Second

type userKey struct{}

var userKeyCtx = userKey{}

// WithUser tags the context with the user a transaction operates on so the
// sharded runner can serialize per-user work.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKeyCtx, userID)
}

// UserFrom returns the user a transaction was tagged with via WithUser.
func UserFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKeyCtx).(string)
	return userID, ok && userID != ""
}

// ShardedRunner implements Runner with sharded mutexes for memory-backed
// stores. Per-user sequences are serialized; unrelated users proceed in
// parallel.
type ShardedRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewShardedRunner returns a ShardedRunner with the default timeout.
func NewShardedRunner() *ShardedRunner {
	return &ShardedRunner{}
}

func (r *ShardedRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := r.selectShard(ctx)
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// selectShard picks a shard based on user ID from context, or defaults to shard 0.
func (r *ShardedRunner) selectShard(ctx context.Context) int {
	if userID, ok := UserFrom(ctx); ok {
		return int(hashString(userID) % numShards)
	}
	return 0
}

// hashString uses FNV-1a for even shard distribution.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
