// Package policy holds the pure authorization decisions for the submission
// workflow. Each Can* function returns nil or a forbidden domain error; status
// preconditions are enforced separately by the model transitions.
package policy

import (
	"examflow/internal/submission/models"
	"examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

func forbidden(reason string) error {
	return dErrors.New(dErrors.CodeForbidden, reason)
}

func notFound() error {
	return dErrors.New(dErrors.CodeNotFound, "submission not found")
}

func isCreator(a models.Actor, s *models.Submission) bool {
	return s.CreatedByID == a.UserID
}

func sameClinic(a models.Actor, s *models.Submission) bool {
	return s.ClinicID == a.ClinicID
}

// CanRead decides single-row visibility. Soft-deleted rows are NotFound for
// non-admins so their existence does not leak.
func CanRead(a models.Actor, s *models.Submission) error {
	if a.IsAdmin() {
		if !sameClinic(a, s) {
			return forbidden("submission belongs to another clinic")
		}
		return nil
	}
	if s.IsDeleted() {
		return notFound()
	}
	if isCreator(a, s) || s.IsApprover(a.UserID) || s.IsAssignee(a.UserID) {
		return nil
	}
	if a.IsDoctor() && s.Status == models.StatusPendingApproval && sameClinic(a, s) {
		return nil
	}
	return forbidden("not a participant in this submission")
}

// CanReadHistory follows CanRead, which already lets admins see deleted rows.
func CanReadHistory(a models.Actor, s *models.Submission) error {
	return CanRead(a, s)
}

// CanMutate gates every write on a specific id. Deleted rows are read-only
// for everyone: invisible to non-admins, forbidden to admins.
func CanMutate(a models.Actor, s *models.Submission) error {
	if !s.IsDeleted() {
		return nil
	}
	if !a.IsAdmin() {
		return notFound()
	}
	return forbidden("deleted submissions cannot be modified")
}

// CanUpdate allows the creator, an admin, a doctor of the clinic on a pending
// item, or the current assignee of an in_progress item.
func CanUpdate(a models.Actor, s *models.Submission) error {
	if a.IsAdmin() || isCreator(a, s) {
		return nil
	}
	switch s.Status {
	case models.StatusPendingApproval:
		if a.IsDoctor() && sameClinic(a, s) {
			return nil
		}
	case models.StatusInProgress:
		if s.IsAssignee(a.UserID) {
			return nil
		}
	}
	return forbidden("not allowed to edit this submission")
}

// RequiresDoctorEditConversion reports whether an allowed update by a must
// first pull the submission back to draft.
func RequiresDoctorEditConversion(a models.Actor, s *models.Submission) bool {
	return a.IsDoctor() && s.Status == models.StatusPendingApproval
}

// CanSubmitForApproval allows the creator, an admin, or the doctor whose edit
// converted the item back to draft.
func CanSubmitForApproval(a models.Actor, s *models.Submission) error {
	if a.IsAdmin() || isCreator(a, s) {
		return nil
	}
	if a.IsDoctor() && s.DoctorEditByID != nil && *s.DoctorEditByID == a.UserID {
		return nil
	}
	return forbidden("only the creator or an admin may submit this draft")
}

// CanAssign allows the creator, an admin, or the current assignee of an
// in_progress item.
func CanAssign(a models.Actor, s *models.Submission) error {
	if a.IsAdmin() || isCreator(a, s) {
		return nil
	}
	if s.Status == models.StatusInProgress && s.IsAssignee(a.UserID) {
		return nil
	}
	return forbidden("not allowed to assign this submission")
}

// CanAssignTarget checks the assignee resolved from the directory: a doctor
// or nurse of the submission's clinic. Failures are validation errors.
func CanAssignTarget(targetRole domain.Role, targetClinic domain.ClinicID, s *models.Submission) error {
	if !targetRole.CanBeAssigned() {
		return dErrors.Validation("invalid assignment target", "assignee must be a doctor or nurse")
	}
	if targetClinic != s.ClinicID {
		return dErrors.Validation("invalid assignment target", "assignee must belong to the submission's clinic")
	}
	return nil
}

func CanClaim(a models.Actor, s *models.Submission) error {
	if s.IsAssignee(a.UserID) {
		return nil
	}
	return forbidden("only the current assignee may claim this submission")
}

// CanSubmitCollaborative allows admins and doctors of the submission's clinic.
func CanSubmitCollaborative(a models.Actor, s *models.Submission) error {
	if a.IsAdmin() {
		return nil
	}
	if a.IsDoctor() && sameClinic(a, s) {
		return nil
	}
	return forbidden("only a doctor or admin may submit a collaborative draft")
}

// CanReview gates approve and reject: doctors of the submission's clinic only.
func CanReview(a models.Actor, s *models.Submission) error {
	if !a.IsDoctor() {
		return forbidden("only doctors may review submissions")
	}
	if !sameClinic(a, s) {
		return forbidden("submission belongs to another clinic")
	}
	return nil
}

func CanReopen(a models.Actor, s *models.Submission) error {
	if a.IsAdmin() || isCreator(a, s) {
		return nil
	}
	return forbidden("only the creator or an admin may reopen this submission")
}

func CanDelete(a models.Actor, s *models.Submission) error {
	if a.IsAdmin() || isCreator(a, s) {
		return nil
	}
	return forbidden("only the creator or an admin may delete this submission")
}

// ListScope derives the list predicate for a. IncludeDeleted is honored for
// admins only.
func ListScope(a models.Actor, f models.ListFilters) (models.Scope, models.ListFilters) {
	if a.IsAdmin() {
		return models.Scope{ClinicWide: true, ClinicID: a.ClinicID}, f
	}
	f.IncludeDeleted = false
	scope := models.Scope{ParticipantID: a.UserID}
	if a.IsDoctor() {
		clinic := a.ClinicID
		scope.ReviewClinicID = &clinic
	}
	return scope, f
}

// CanListPendingApprovals allows the review queue for doctors and admins.
func CanListPendingApprovals(a models.Actor) error {
	if a.IsDoctor() || a.IsAdmin() {
		return nil
	}
	return forbidden("only doctors and admins may view the approval queue")
}

// PendingApprovalScope restricts the review queue to the caller's clinic.
func PendingApprovalScope(a models.Actor, f models.ListFilters) (models.Scope, models.ListFilters) {
	f.Status = models.StatusPendingApproval
	f.IncludeDeleted = false
	return models.Scope{ClinicWide: true, ClinicID: a.ClinicID}, f
}
