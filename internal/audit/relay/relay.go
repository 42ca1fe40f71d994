// Package relay forwards committed audit entries to downstream consumers
// (agency integrations) through a bounded buffer and a background worker.
// Relay failures never affect workflow operations; the database trail stays
// the source of truth.
package relay

import (
	"context"
	"log/slog"
	"time"

	"examflow/internal/audit"
)

// Sink publishes a batch of entries downstream.
type Sink interface {
	Publish(ctx context.Context, entries []audit.Entry) error
}

const (
	defaultBuffer    = 1024
	defaultBatchSize = 64
	flushInterval    = 250 * time.Millisecond
	publishTimeout   = 10 * time.Second
)

// Relay buffers entries and drains them to a Sink from Run.
type Relay struct {
	sink    Sink
	inbox   chan audit.Entry
	breaker *circuitBreaker
	logger  *slog.Logger
}

type Option func(*Relay)

func WithBuffer(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.inbox = make(chan audit.Entry, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithBreaker overrides the failure threshold and open duration.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(r *Relay) {
		r.breaker = newCircuitBreaker(threshold, cooldown)
	}
}

func New(sink Sink, opts ...Option) *Relay {
	r := &Relay{
		sink:    sink,
		inbox:   make(chan audit.Entry, defaultBuffer),
		breaker: newCircuitBreaker(5, 30*time.Second),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue implements audit.Relay. It never blocks.
func (r *Relay) Enqueue(entry audit.Entry) bool {
	select {
	case r.inbox <- entry:
		return true
	default:
		return false
	}
}

// Run drains the buffer in batches until ctx is cancelled, then flushes what
// is already buffered.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]audit.Entry, 0, defaultBatchSize)
	for {
		select {
		case <-ctx.Done():
			batch = r.drain(batch)
			r.flush(context.WithoutCancel(ctx), batch)
			return ctx.Err()
		case entry := <-r.inbox:
			batch = append(batch, entry)
			if len(batch) >= defaultBatchSize {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Relay) drain(batch []audit.Entry) []audit.Entry {
	for {
		select {
		case entry := <-r.inbox:
			batch = append(batch, entry)
		default:
			return batch
		}
	}
}

func (r *Relay) flush(ctx context.Context, batch []audit.Entry) {
	if len(batch) == 0 {
		return
	}
	if !r.breaker.Allow() {
		r.logger.WarnContext(ctx, "audit relay circuit open, dropping batch", "entries", len(batch))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.sink.Publish(ctx, batch); err != nil {
		r.breaker.RecordFailure()
		r.logger.ErrorContext(ctx, "audit relay publish failed",
			"entries", len(batch),
			"error", err,
		)
		return
	}
	r.breaker.RecordSuccess()
}
