// Package tx carries an open database transaction through context so stores
// can join the caller's unit of work without widening their signatures.
package tx

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a pgx transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a pgx transaction from context if present.
func From(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

type journalKey struct{}

// Journal collects undo steps for in-memory stores so a failed unit of work
// can be reverted. Steps run in reverse registration order.
type Journal struct {
	mu   sync.Mutex
	undo []func()
}

// WithJournal stores j in context for in-memory stores to register undo steps.
func WithJournal(ctx context.Context, j *Journal) context.Context {
	if j == nil {
		return ctx
	}
	return context.WithValue(ctx, journalKey{}, j)
}

// JournalFrom extracts the in-memory journal from context if present.
func JournalFrom(ctx context.Context) (*Journal, bool) {
	j, ok := ctx.Value(journalKey{}).(*Journal)
	return j, ok
}

// OnRollback registers an undo step.
func (j *Journal) OnRollback(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undo = append(j.undo, fn)
}

// Rollback runs and discards all registered undo steps.
func (j *Journal) Rollback() {
	j.mu.Lock()
	undo := j.undo
	j.undo = nil
	j.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// Commit discards registered undo steps.
func (j *Journal) Commit() {
	j.mu.Lock()
	j.undo = nil
	j.mu.Unlock()
}
