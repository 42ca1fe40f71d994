package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"examflow/pkg/domain"
	"examflow/pkg/requestcontext"
)

// Relay receives entries after they are durably appended. Enqueue must not
// block; it reports false when the entry was dropped.
type Relay interface {
	Enqueue(entry Entry) bool
}

// Publisher records entries with fail-closed semantics: the caller blocks
// until the append succeeds, and must fail its operation if it does not.
type Publisher struct {
	store   Store
	relay   Relay
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithRelay forwards persisted entries to downstream consumers.
func WithRelay(r Relay) Option {
	return func(p *Publisher) {
		p.relay = r
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Record synchronously appends entry. When ctx carries a transaction the
// append is part of it, so the entry commits or rolls back with the state change.
func (p *Publisher) Record(ctx context.Context, entry *Entry) error {
	start := time.Now()

	if err := p.store.Append(ctx, entry); err != nil {
		if p.metrics != nil {
			p.metrics.PersistFailures.Inc()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: submission audit failed",
				"event_type", entry.EventType,
				"submission_id", entry.SubmissionID,
				"user_id", entry.UserID,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		p.metrics.EntriesRecorded.WithLabelValues(entry.EventType.String()).Inc()
	}
	return nil
}

// Relay hands already committed entries to the relay. Called after the unit
// of work commits so downstream consumers never see rolled-back events.
func (p *Publisher) Relay(entries []Entry) {
	if p.relay == nil {
		return
	}
	for _, e := range entries {
		if !p.relay.Enqueue(e) {
			if p.metrics != nil {
				p.metrics.RelayDropped.Inc()
			}
			if p.logger != nil {
				p.logger.Warn("audit relay buffer full, entry not forwarded",
					"audit_id", e.ID,
					"submission_id", e.SubmissionID,
				)
			}
		}
	}
}

// List returns the stored entries for a submission in insertion order.
func (p *Publisher) List(ctx context.Context, submissionID domain.SubmissionID) ([]Entry, error) {
	return p.store.ListBySubmission(ctx, submissionID)
}
