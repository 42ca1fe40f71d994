package service

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"examflow/internal/directory"
	"examflow/internal/submission/models"
	"examflow/internal/submission/policy"
	"examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

// GetOne returns a submission visible to actor. Soft-deleted rows are
// NotFound for non-admins; rows outside the caller's scope are Forbidden.
func (s *Service) GetOne(ctx context.Context, actor models.Actor, id domain.SubmissionID) (_ *models.Submission, err error) {
	ctx, end := s.instrument(ctx, opGetOne, actor, id.String())
	defer func() { end(err) }()

	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanRead(actor, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// List returns one page of the submissions in actor's scope.
func (s *Service) List(ctx context.Context, actor models.Actor, filters models.ListFilters) (_ *models.ListResult, err error) {
	ctx, end := s.instrument(ctx, opList, actor, "")
	defer func() { end(err) }()

	scope, filters := policy.ListScope(actor, filters)
	return s.page(ctx, scope, filters)
}

// ListPendingApprovals is the review queue: pending_approval rows of the
// caller's clinic, for doctors and admins.
func (s *Service) ListPendingApprovals(ctx context.Context, actor models.Actor, filters models.ListFilters) (_ *models.ListResult, err error) {
	ctx, end := s.instrument(ctx, opListPendingApprovals, actor, "")
	defer func() { end(err) }()

	if err := policy.CanListPendingApprovals(actor); err != nil {
		return nil, err
	}
	scope, filters := policy.PendingApprovalScope(actor, filters)
	return s.page(ctx, scope, filters)
}

// page runs the page query and the count query in parallel over the same predicate.
func (s *Service) page(ctx context.Context, scope models.Scope, filters models.ListFilters) (*models.ListResult, error) {
	filters.Normalize()
	q := models.Query{Scope: scope, Filters: filters}

	var (
		rows  []*models.Submission
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.store.List(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.Count(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list submissions")
	}

	if rows == nil {
		rows = []*models.Submission{}
	}
	return &models.ListResult{
		Data:       rows,
		Pagination: models.NewPagination(filters.Page, filters.Limit, total),
	}, nil
}

// History reconstructs the audit timeline with actor names resolved.
// Visibility follows GetOne, so admins can read the trail of deleted rows.
func (s *Service) History(ctx context.Context, actor models.Actor, id domain.SubmissionID, order models.HistoryOrder) (_ *models.History, err error) {
	ctx, end := s.instrument(ctx, opHistory, actor, id.String())
	defer func() { end(err) }()

	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanReadHistory(actor, sub); err != nil {
		return nil, err
	}

	entries, err := s.audit.List(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load submission history")
	}

	userIDs := make([]domain.UserID, 0, len(entries))
	for _, e := range entries {
		userIDs = append(userIDs, e.UserID)
	}
	names, err := directory.Names(ctx, s.directory, userIDs)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "history rendered without actor names", "submission_id", id, "error", err)
		}
		names = nil
	}

	events := make([]models.HistoryEvent, 0, len(entries))
	for _, e := range entries {
		name, ok := names[e.UserID]
		if !ok {
			name = models.UnknownUserName
		}
		events = append(events, models.HistoryEvent{
			Timestamp: e.Timestamp,
			EventType: e.EventType.String(),
			UserID:    e.UserID,
			UserName:  name,
			Details:   e.Changes,
		})
	}
	if order == models.HistoryNewestFirst {
		slices.Reverse(events)
	}
	return &models.History{SubmissionID: id, Events: events}, nil
}
