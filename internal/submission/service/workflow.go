package service

import (
	"context"
	"time"

	"examflow/internal/audit"
	"examflow/internal/submission/models"
	"examflow/internal/submission/policy"
	"examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
	strutil "examflow/pkg/platform/strings"
	"examflow/pkg/requestcontext"
)

const (
	opCreate               = "create"
	opUpdate               = "update"
	opSubmitForApproval    = "submit_for_approval"
	opAssign               = "assign"
	opClaim                = "claim"
	opSubmitCollaborative  = "submit_collaborative"
	opApprove              = "approve"
	opReject               = "reject"
	opReopen               = "reopen"
	opDelete               = "delete"
	opList                 = "list"
	opListPendingApprovals = "list_pending_approvals"
	opGetOne               = "get"
	opHistory              = "history"
)

// event is an audit entry to append once the conditional write succeeded.
type event struct {
	eventType audit.EventType
	changes   audit.Changes
}

// transition mutates next (a copy of the loaded row) and returns the audit
// events describing the change. Returning an error discards next.
type transition func(ctx context.Context, next *models.Submission, now time.Time) ([]event, error)

// mutate loads id, applies the visibility gate and authorize, then the
// transition, and writes the result conditionally on the loaded status and
// version together with its audit entries.
func (s *Service) mutate(ctx context.Context, actor models.Actor, id domain.SubmissionID, authorize func(*models.Submission) error, apply transition) (*models.Submission, error) {
	now := requestcontext.Now(ctx)
	var result *models.Submission

	err := s.runUnit(ctx, id.String(), func(ctx context.Context, u *unit) error {
		current, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := policy.CanMutate(actor, current); err != nil {
			return err
		}
		if err := authorize(current); err != nil {
			return err
		}

		next := current.Clone()
		events, err := apply(ctx, next, now)
		if err != nil {
			return err
		}
		// No events means nothing changed; every persisted write is audited.
		if len(events) == 0 {
			result = current
			return nil
		}
		if err := s.store.UpdateIfUnchanged(ctx, next, current.Status, current.Version); err != nil {
			return translateStoreErr(err, "failed to update submission")
		}
		for _, ev := range events {
			if err := s.record(ctx, u, next, actor.UserID, ev.eventType, ev.changes, now); err != nil {
				return err
			}
		}
		if current.Status != next.Status {
			u.transitions = append(u.transitions, [2]models.Status{current.Status, next.Status})
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Create stores a new submission and routes it: collaborative when AssignTo
// is set, draft when SaveAsDraft is set, otherwise doctors and admins submit
// directly and nurses either route for approval or keep a draft.
func (s *Service) Create(ctx context.Context, actor models.Actor, in models.CreateInput) (_ *models.Submission, err error) {
	ctx, end := s.instrument(ctx, opCreate, actor, "")
	defer func() { end(err) }()

	now := requestcontext.Now(ctx)
	sub, err := models.NewSubmission(domain.NewSubmissionID(), actor, in, now)
	if err != nil {
		return nil, err
	}

	route := models.DecideCreateRoute(actor, in)
	var events []event
	switch route {
	case models.CreateRouteCollaborative:
		target, err := s.resolveAssignee(ctx, *in.AssignTo)
		if err != nil {
			return nil, err
		}
		if err := policy.CanAssignTarget(target.Role, target.ClinicID, sub); err != nil {
			return nil, err
		}
		if _, err := sub.Assign(target.ID, target.Role, actor.UserID, now); err != nil {
			return nil, err
		}
		events = append(events, event{audit.EventAssigned, audit.AssignedChanges{
			AssignedToID:   target.ID,
			AssignedToName: target.Name,
			AssignedToRole: target.Role,
			Note:           in.AssignNote,
		}})
	case models.CreateRouteDirect, models.CreateRouteApproval:
		if err := s.validate(ctx, sub); err != nil {
			return nil, err
		}
		if err := sub.SubmitForApproval(actor, now); err != nil {
			return nil, err
		}
		submitRoute := audit.RouteDirect
		if route == models.CreateRouteApproval {
			submitRoute = audit.RouteApproval
		}
		events = append(events, event{audit.EventSubmitted, audit.SubmittedChanges{
			Route:      submitRoute,
			FromStatus: string(models.StatusDraft),
			ToStatus:   string(sub.Status),
		}})
	}

	err = s.runUnit(ctx, sub.ID.String(), func(ctx context.Context, u *unit) error {
		if err := s.store.Create(ctx, sub); err != nil {
			return translateStoreErr(err, "failed to create submission")
		}
		created := event{audit.EventCreated, audit.CreatedChanges{Status: string(sub.Status), ExamType: string(sub.ExamType)}}
		for _, ev := range append([]event{created}, events...) {
			if err := s.record(ctx, u, sub, actor.UserID, ev.eventType, ev.changes, now); err != nil {
				return err
			}
		}
		if sub.Status != models.StatusDraft {
			u.transitions = append(u.transitions, [2]models.Status{models.StatusDraft, sub.Status})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Update edits fields and optionally reassigns. A doctor editing a
// pending_approval item first converts it back to draft so the doctor can
// submit it directly afterwards.
func (s *Service) Update(ctx context.Context, actor models.Actor, id domain.SubmissionID, in models.UpdateInput) (_ *models.Submission, err error) {
	ctx, end := s.instrument(ctx, opUpdate, actor, id.String())
	defer func() { end(err) }()

	if !in.HasFieldChanges() && in.AssignTo == nil {
		return nil, dErrors.Validation("update contains no changes", "provide at least one field or assignTo")
	}

	authorize := func(current *models.Submission) error {
		if err := policy.CanUpdate(actor, current); err != nil {
			return err
		}
		if in.AssignTo != nil {
			return policy.CanAssign(actor, current)
		}
		return nil
	}

	return s.mutate(ctx, actor, id, authorize, func(ctx context.Context, next *models.Submission, now time.Time) ([]event, error) {
		from := next.Status
		converted := false
		if policy.RequiresDoctorEditConversion(actor, next) {
			if err := next.ConvertToDraftForDoctorEdit(actor.UserID, now); err != nil {
				return nil, err
			}
			converted = true
		} else if err := next.RequireEditable(); err != nil {
			return nil, err
		}

		var fields []string
		if in.HasFieldChanges() {
			changed, err := next.ApplyPatch(in, now)
			if err != nil {
				return nil, err
			}
			fields = strutil.SortedUnique(changed)
		}

		var events []event
		if converted || len(fields) > 0 {
			changes := audit.UpdatedChanges{Action: audit.ActionEdited, Fields: fields}
			if converted {
				changes.FromStatus = string(from)
				changes.ToStatus = string(next.Status)
			}
			events = append(events, event{audit.EventUpdated, changes})
		}

		if in.AssignTo != nil {
			ev, err := s.assignTo(ctx, actor, next, *in.AssignTo, in.AssignNote, now)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
		return events, nil
	})
}

// assignTo resolves and validates the target, then applies the assignment.
func (s *Service) assignTo(ctx context.Context, actor models.Actor, next *models.Submission, targetID domain.UserID, note string, now time.Time) (event, error) {
	target, err := s.resolveAssignee(ctx, targetID)
	if err != nil {
		return event{}, err
	}
	previous := next.AssignedToID
	reassigned, err := next.Assign(target.ID, target.Role, actor.UserID, now)
	if err != nil {
		return event{}, err
	}
	if err := policy.CanAssignTarget(target.Role, target.ClinicID, next); err != nil {
		return event{}, err
	}

	changes := audit.AssignedChanges{
		AssignedToID:   target.ID,
		AssignedToName: target.Name,
		AssignedToRole: target.Role,
		Note:           note,
	}
	eventType := audit.EventAssigned
	if reassigned {
		eventType = audit.EventReassigned
		changes.PreviousAssigneeID = previous
	}
	return event{eventType, changes}, nil
}

// SubmitForApproval moves a draft forward: directly to submitted for doctors
// and admins, to pending_approval for nurses. The content gate runs first.
func (s *Service) SubmitForApproval(ctx context.Context, actor models.Actor, id domain.SubmissionID) (_ *models.Submission, err error) {
	ctx, end := s.instrument(ctx, opSubmitForApproval, actor, id.String())
	defer func() { end(err) }()

	return s.mutate(ctx, actor, id,
		func(current *models.Submission) error { return policy.CanSubmitForApproval(actor, current) },
		func(ctx context.Context, next *models.Submission, now time.Time) ([]event, error) {
			from := next.Status
			if err := next.SubmitForApproval(actor, now); err != nil {
				return nil, err
			}
			if err := s.validate(ctx, next); err != nil {
				return nil, err
			}
			route := audit.RouteApproval
			if next.Status == models.StatusSubmitted {
				route = audit.RouteDirect
			}
			return []event{{audit.EventSubmitted, audit.SubmittedChanges{
				Route:      route,
				FromStatus: string(from),
				ToStatus:   string(next.Status),
			}}}, nil
		})
}

// Assign hands a draft or in_progress submission to a doctor or nurse of its clinic.
func (s *Service) Assign(ctx context.Context, actor models.Actor, id domain.SubmissionID, in models.AssignInput) (_ *models.Submission, err error) {
	ctx, end := s.instrument(ctx, opAssign, actor, id.String())
	defer func() { end(err) }()

	if in.TargetUserID.IsNil() {
		return nil, dErrors.Validation("invalid assignment target", "assignee is required")
	}
	return s.mutate(ctx, actor, id,
		func(current *models.Submission) error { return policy.CanAssign(actor, current) },
		func(ctx context.Context, next *models.Submission, now time.Time) ([]event, error) {
			ev, err := s.assignTo(ctx, actor, next, in.TargetUserID, in.Note, now)
			if err != nil {
				return nil, err
			}
			return []event{ev}, nil
		})
}

// Claim marks that the assignee has started work. The status is unchanged;
// the write still bumps the version so the claim is ordered against other writes.
func (s *Service) Claim(ctx context.Context, actor models.Actor, id domain.SubmissionID) (_ *models.ActionResult, err error) {
	ctx, end := s.instrument(ctx, opClaim, actor, id.String())
	defer func() { end(err) }()

	_, err = s.mutate(ctx, actor, id,
		func(current *models.Submission) error { return policy.CanClaim(actor, current) },
		func(_ context.Context, next *models.Submission, now time.Time) ([]event, error) {
			if err := next.RequireClaimable(); err != nil {
				return nil, err
			}
			next.UpdatedAt = now
			return []event{{audit.EventClaimed, audit.ClaimedChanges{AssignedToID: actor.UserID}}}, nil
		})
	if err != nil {
		return nil, err
	}
	return &models.ActionResult{Success: true, Message: "Submission claimed"}, nil
}

// SubmitCollaborativeDraft finalizes an in_progress submission. The content
// gate must pass before anything is written.
func (s *Service) SubmitCollaborativeDraft(ctx context.Context, actor models.Actor, id domain.SubmissionID) (_ *models.Submission, err error) {
	ctx, end := s.instrument(ctx, opSubmitCollaborative, actor, id.String())
	defer func() { end(err) }()

	return s.mutate(ctx, actor, id,
		func(current *models.Submission) error { return policy.CanSubmitCollaborative(actor, current) },
		func(ctx context.Context, next *models.Submission, now time.Time) ([]event, error) {
			if err := next.SubmitCollaborative(actor.UserID, now); err != nil {
				return nil, err
			}
			if err := s.validate(ctx, next); err != nil {
				return nil, err
			}
			return []event{{audit.EventSubmitted, audit.SubmittedChanges{
				Route:      audit.RouteCollaborative,
				FromStatus: string(models.StatusInProgress),
				ToStatus:   string(next.Status),
			}}}, nil
		})
}

func (s *Service) Approve(ctx context.Context, actor models.Actor, id domain.SubmissionID, notes string) (_ *models.Submission, err error) {
	ctx, end := s.instrument(ctx, opApprove, actor, id.String())
	defer func() { end(err) }()

	return s.mutate(ctx, actor, id,
		func(current *models.Submission) error { return policy.CanReview(actor, current) },
		func(_ context.Context, next *models.Submission, now time.Time) ([]event, error) {
			if err := next.Approve(actor.UserID, now); err != nil {
				return nil, err
			}
			return []event{{audit.EventApproved, audit.ApprovedChanges{Notes: notes}}}, nil
		})
}

func (s *Service) Reject(ctx context.Context, actor models.Actor, id domain.SubmissionID, reason string) (_ *models.Submission, err error) {
	ctx, end := s.instrument(ctx, opReject, actor, id.String())
	defer func() { end(err) }()

	return s.mutate(ctx, actor, id,
		func(current *models.Submission) error { return policy.CanReview(actor, current) },
		func(_ context.Context, next *models.Submission, now time.Time) ([]event, error) {
			if err := next.Reject(actor.UserID, reason, now); err != nil {
				return nil, err
			}
			return []event{{audit.EventRejected, audit.RejectedChanges{Reason: next.RejectedReason}}}, nil
		})
}

// Reopen returns a rejected submission to draft, keeping the rejection
// reason and reviewer for history.
func (s *Service) Reopen(ctx context.Context, actor models.Actor, id domain.SubmissionID) (_ *models.Submission, err error) {
	ctx, end := s.instrument(ctx, opReopen, actor, id.String())
	defer func() { end(err) }()

	return s.mutate(ctx, actor, id,
		func(current *models.Submission) error { return policy.CanReopen(actor, current) },
		func(_ context.Context, next *models.Submission, now time.Time) ([]event, error) {
			if err := next.Reopen(now); err != nil {
				return nil, err
			}
			return []event{{audit.EventUpdated, audit.UpdatedChanges{
				Action:     audit.ActionReopened,
				FromStatus: string(models.StatusRejected),
				ToStatus:   string(next.Status),
			}}}, nil
		})
}

// Delete soft-deletes a draft. The audit entry snapshots identifying fields.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id domain.SubmissionID) (_ *models.ActionResult, err error) {
	ctx, end := s.instrument(ctx, opDelete, actor, id.String())
	defer func() { end(err) }()

	_, err = s.mutate(ctx, actor, id,
		func(current *models.Submission) error { return policy.CanDelete(actor, current) },
		func(_ context.Context, next *models.Submission, now time.Time) ([]event, error) {
			if err := next.SoftDelete(now); err != nil {
				return nil, err
			}
			return []event{{audit.EventDeleted, audit.DeletedChanges{
				PatientName: next.PatientName,
				ExamType:    string(next.ExamType),
			}}}, nil
		})
	if err != nil {
		return nil, err
	}
	return &models.ActionResult{Success: true, Message: "Submission deleted"}, nil
}
