// Package service is the submission workflow engine and its query side. Every
// mutation runs read, authorize, transition, conditional write and audit
// append inside one unit of work.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"examflow/internal/audit"
	"examflow/internal/directory"
	"examflow/internal/submission/metrics"
	"examflow/internal/submission/models"
	"examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
	"examflow/pkg/platform/sentinel"
	"examflow/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, sub *models.Submission) error
	FindByID(ctx context.Context, id domain.SubmissionID) (*models.Submission, error)
	UpdateIfUnchanged(ctx context.Context, sub *models.Submission, expectedStatus models.Status, expectedVersion int64) error
	List(ctx context.Context, q models.Query) ([]*models.Submission, error)
	Count(ctx context.Context, q models.Query) (int, error)
}

// AuditPublisher records entries fail-closed and relays them after commit.
type AuditPublisher interface {
	Record(ctx context.Context, entry *audit.Entry) error
	Relay(entries []audit.Entry)
	List(ctx context.Context, submissionID domain.SubmissionID) ([]audit.Entry, error)
}

// Validator gates exam payloads before a submission leaves draft.
type Validator interface {
	Validate(ctx context.Context, examType models.ExamType, payload map[string]any) error
}

// Service orchestrates the submission workflow.
type Service struct {
	store     Store
	audit     AuditPublisher
	directory directory.Directory
	validator Validator
	tx        TxRunner
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func WithValidator(v Validator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

// WithTxRunner sets the unit of work; the default is an in-memory ShardedTx.
func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// New constructs a Service.
func New(store Store, publisher AuditPublisher, dir directory.Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		audit:     publisher,
		directory: dir,
		tracer:    otel.Tracer("examflow/submission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(DefaultTxTimeout)
	}
	return s
}

// instrument opens a span for op and returns the function that closes it
// and records the outcome.
func (s *Service) instrument(ctx context.Context, op string, actor models.Actor, id string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "submission."+op, trace.WithAttributes(
		attribute.String("submission.operation", op),
		attribute.String("actor.role", actor.Role.String()),
	))
	if id != "" {
		span.SetAttributes(attribute.String("submission.id", id))
	}
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		s.metrics.ObserveOperation(op, outcome, time.Since(start))
		span.End()
	}
}

// unit collects what a unit of work produced, for reporting after commit.
type unit struct {
	entries     []audit.Entry
	transitions [][2]models.Status
}

// runUnit executes fn in a unit of work keyed by key. Audit entries are
// relayed and logged only after the commit.
func (s *Service) runUnit(ctx context.Context, key string, fn func(ctx context.Context, u *unit) error) error {
	u := &unit{}
	err := s.tx.RunInTx(withTxKey(ctx, key), func(txCtx context.Context) error {
		u.entries, u.transitions = nil, nil
		return fn(txCtx, u)
	})
	if err != nil {
		return err
	}

	s.audit.Relay(u.entries)
	for _, e := range u.entries {
		s.logAudit(ctx, e)
	}
	for _, t := range u.transitions {
		s.metrics.IncrementTransition(string(t[0]), string(t[1]))
	}
	return nil
}

// record builds and appends one audit entry inside the unit of work.
func (s *Service) record(ctx context.Context, u *unit, sub *models.Submission, actor domain.UserID, eventType audit.EventType, changes audit.Changes, now time.Time) error {
	entry, err := audit.NewEntry(sub.ID, actor, eventType, changes, now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build audit entry")
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
	}
	u.entries = append(u.entries, *entry)
	return nil
}

func (s *Service) load(ctx context.Context, id domain.SubmissionID) (*models.Submission, error) {
	sub, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load submission")
	}
	return sub, nil
}

// translateStoreErr maps store sentinels to domain errors.
func translateStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "submission not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "submission was modified concurrently; refetch and retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// validate runs the content gate. Unclassified validator failures are internal.
func (s *Service) validate(ctx context.Context, sub *models.Submission) error {
	if s.validator == nil {
		return nil
	}
	err := s.validator.Validate(ctx, sub.ExamType, sub.FormData)
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "content validation failed")
}

// resolveAssignee looks the target up in the directory. Unknown targets are
// validation failures, as are targets that are not doctors or nurses of the
// submission's clinic.
func (s *Service) resolveAssignee(ctx context.Context, target domain.UserID) (*directory.User, error) {
	user, err := s.directory.Lookup(ctx, target)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Validation("invalid assignment target", "assignee does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve assignee")
	}
	return user, nil
}

func (s *Service) logAudit(ctx context.Context, e audit.Entry) {
	if s.logger == nil {
		return
	}
	event := "submission_" + e.EventType.String()
	args := []any{
		"submission_id", e.SubmissionID,
		"user_id", e.UserID,
		"audit_id", e.ID,
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	args = append(args, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
