package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examflow/internal/audit"
	"examflow/internal/audit/store/memory"
	"examflow/pkg/domain"
)

type failingStore struct{ err error }

func (f failingStore) Append(context.Context, *audit.Entry) error { return f.err }
func (f failingStore) ListBySubmission(context.Context, domain.SubmissionID) ([]audit.Entry, error) {
	return nil, nil
}

type fullRelay struct{ offered int }

func (r *fullRelay) Enqueue(audit.Entry) bool {
	r.offered++
	return false
}

type captureRelay struct{ got []audit.Entry }

func (r *captureRelay) Enqueue(e audit.Entry) bool {
	r.got = append(r.got, e)
	return true
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func newEntry(t *testing.T, eventType audit.EventType, changes audit.Changes) *audit.Entry {
	t.Helper()
	e, err := audit.NewEntry(domain.NewSubmissionID(), domain.UserID(uuid.New()), eventType, changes, time.Now())
	require.NoError(t, err)
	return e
}

func TestPublisherRecord(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("persists and counts by event type", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		store := memory.NewInMemoryStore()
		p := audit.NewPublisher(store, audit.WithMetrics(audit.NewMetrics(reg)), audit.WithLogger(quiet))

		e := newEntry(t, audit.EventRejected, audit.RejectedChanges{Reason: "incomplete vitals"})
		require.NoError(t, p.Record(context.Background(), e))

		assert.Equal(t, int64(1), e.Sequence)
		listed, err := p.List(context.Background(), e.SubmissionID)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, audit.RejectedChanges{Reason: "incomplete vitals"}, listed[0].Changes)
		assert.Equal(t, 1.0, counterValue(t, reg, "examflow_audit_entries_total"))
	})

	t.Run("fails closed when the store rejects the append", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		storeErr := errors.New("disk full")
		p := audit.NewPublisher(failingStore{err: storeErr}, audit.WithMetrics(audit.NewMetrics(reg)), audit.WithLogger(quiet))

		err := p.Record(context.Background(), newEntry(t, audit.EventCreated, audit.CreatedChanges{Status: "draft"}))
		require.Error(t, err)
		assert.ErrorIs(t, err, storeErr)
		assert.Equal(t, 1.0, counterValue(t, reg, "examflow_audit_persist_failures_total"))
		assert.Zero(t, counterValue(t, reg, "examflow_audit_entries_total"))
	})
}

func TestPublisherRelay(t *testing.T) {
	t.Run("forwards entries", func(t *testing.T) {
		relay := &captureRelay{}
		p := audit.NewPublisher(memory.NewInMemoryStore(), audit.WithRelay(relay))
		e := newEntry(t, audit.EventClaimed, audit.ClaimedChanges{AssignedToID: domain.UserID(uuid.New())})

		p.Relay([]audit.Entry{*e})
		require.Len(t, relay.got, 1)
		assert.Equal(t, e.ID, relay.got[0].ID)
	})

	t.Run("counts drops when the relay is full", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		relay := &fullRelay{}
		p := audit.NewPublisher(memory.NewInMemoryStore(), audit.WithRelay(relay), audit.WithMetrics(audit.NewMetrics(reg)))

		e := newEntry(t, audit.EventCreated, audit.CreatedChanges{Status: "draft"})
		p.Relay([]audit.Entry{*e, *e})
		assert.Equal(t, 2, relay.offered)
		assert.Equal(t, 2.0, counterValue(t, reg, "examflow_audit_relay_dropped_total"))
	})

	t.Run("no relay configured is a no-op", func(t *testing.T) {
		p := audit.NewPublisher(memory.NewInMemoryStore())
		assert.NotPanics(t, func() {
			p.Relay([]audit.Entry{*newEntry(t, audit.EventCreated, audit.CreatedChanges{})})
		})
	})
}
