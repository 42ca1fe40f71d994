package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "examflow/pkg/domain-errors"
	txcontext "examflow/pkg/platform/tx"
)

// TxRunner provides the unit of work for a workflow operation. The context
// passed to fn carries the transaction so stores and the audit publisher
// join it; returning an error rolls every write back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// numTxShards spreads in-memory units of work across locks keyed by
// submission id, so different submissions never wait on each other.
const numTxShards = 128

// DefaultTxTimeout bounds a unit of work when the caller has no deadline.
const DefaultTxTimeout = 5 * time.Second

// ShardedTx is the in-memory TxRunner: a per-submission shard lock plus a
// journal that reverts in-memory writes when fn fails.
type ShardedTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx(timeout time.Duration) *ShardedTx {
	return &ShardedTx{timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	journal := &txcontext.Journal{}
	if err := fn(txcontext.WithJournal(ctx, journal)); err != nil {
		journal.Rollback()
		return err
	}
	journal.Commit()
	return nil
}

// selectShard hashes the lock key from context, or defaults to shard 0.
func (t *ShardedTx) selectShard(ctx context.Context) int {
	key, ok := ctx.Value(txKeyCtx).(string)
	if !ok || key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numTxShards)
}

type txKey struct{}

var txKeyCtx = txKey{}

// withTxKey names the record a unit of work touches.
func withTxKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, txKeyCtx, key)
}
