package tx

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

// fakeTx satisfies pgx.Tx by embedding the interface; only identity matters here.
type fakeTx struct{ pgx.Tx }

func TestWithTx(t *testing.T) {
	t.Run("nil tx leaves context untouched", func(t *testing.T) {
		ctx := context.Background()
		assert.Equal(t, ctx, WithTx(ctx, nil))
		_, ok := From(ctx)
		assert.False(t, ok)
	})

	t.Run("stored tx is returned", func(t *testing.T) {
		stored := &fakeTx{}
		got, ok := From(WithTx(context.Background(), stored))
		assert.True(t, ok)
		assert.Same(t, stored, got)
	})
}

func TestJournal(t *testing.T) {
	t.Run("rollback runs undo steps in reverse", func(t *testing.T) {
		j := &Journal{}
		var order []int
		j.OnRollback(func() { order = append(order, 1) })
		j.OnRollback(func() { order = append(order, 2) })

		j.Rollback()
		assert.Equal(t, []int{2, 1}, order)

		j.Rollback()
		assert.Equal(t, []int{2, 1}, order, "steps run once")
	})

	t.Run("commit discards undo steps", func(t *testing.T) {
		j := &Journal{}
		called := false
		j.OnRollback(func() { called = true })
		j.Commit()
		j.Rollback()
		assert.False(t, called)
	})

	t.Run("journal travels in context", func(t *testing.T) {
		j := &Journal{}
		got, ok := JournalFrom(WithJournal(context.Background(), j))
		assert.True(t, ok)
		assert.Same(t, j, got)

		_, ok = JournalFrom(context.Background())
		assert.False(t, ok)
	})
}
