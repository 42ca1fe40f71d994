// Package models holds the submission aggregate and its named workflow
// transitions. Authorization lives in the policy package; these methods
// enforce only the status graph and field side effects.
package models

import (
	"fmt"
	"strings"
	"time"

	"examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

// Actor is the trusted identity of the caller performing an operation.
type Actor struct {
	UserID   domain.UserID
	Role     domain.Role
	ClinicID domain.ClinicID
}

func (a Actor) IsAdmin() bool  { return a.Role == domain.RoleAdmin }
func (a Actor) IsDoctor() bool { return a.Role == domain.RoleDoctor }
func (a Actor) IsNurse() bool  { return a.Role == domain.RoleNurse }

// Submission is the aggregate root for one medical examination record.
//
// Invariants:
//   - Status moves only along the graph in status.go
//   - ID, ClinicID, CreatedByID and CreatedAt are immutable after construction
//   - Status submitted implies SubmittedAt, ApprovedByID and ApprovedAt are set
//   - Status rejected implies RejectedReason and ApprovedByID are set
//   - Status in_progress implies AssignedToID is set
//   - DeletedAt is only ever set on a draft
//   - Version increases by one on every persisted write
type Submission struct {
	ID       domain.SubmissionID `json:"id"`
	ClinicID domain.ClinicID     `json:"clinicId"`
	ExamType ExamType            `json:"examType"`
	Status   Status              `json:"status"`
	FormData map[string]any      `json:"formData"`

	PatientName        string     `json:"patientName"`
	PatientIdentifier  string     `json:"patientIdentifier"`
	PatientDateOfBirth *time.Time `json:"patientDateOfBirth,omitempty"`
	PatientEmail       string     `json:"patientEmail,omitempty"`
	PatientMobile      string     `json:"patientMobile,omitempty"`
	ExaminationDate    *time.Time `json:"examinationDate,omitempty"`

	CreatedByID      domain.UserID  `json:"createdById"`
	AssignedDoctorID *domain.UserID `json:"assignedDoctorId,omitempty"`

	AssignedToID   *domain.UserID `json:"assignedToId,omitempty"`
	AssignedToRole domain.Role    `json:"assignedToRole,omitempty"`
	AssignedAt     *time.Time     `json:"assignedAt,omitempty"`
	AssignedByID   *domain.UserID `json:"assignedById,omitempty"`

	ApprovedByID     *domain.UserID `json:"approvedById,omitempty"`
	ApprovedAt       *time.Time     `json:"approvedDate,omitempty"`
	SubmittedAt      *time.Time     `json:"submittedDate,omitempty"`
	RejectedReason   string         `json:"rejectedReason,omitempty"`
	LastReviewedByID *domain.UserID `json:"lastReviewedById,omitempty"`
	DoctorEditByID   *domain.UserID `json:"-"`

	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"createdDate"`
	UpdatedAt time.Time  `json:"updatedDate"`
}

// NewSubmission builds a draft owned by the creator. Routing out of draft is
// applied by the caller through the named transitions.
func NewSubmission(id domain.SubmissionID, creator Actor, in CreateInput, now time.Time) (*Submission, error) {
	name := strings.TrimSpace(in.PatientName)
	identifier := strings.TrimSpace(in.PatientIdentifier)
	var reasons []string
	if !in.ExamType.IsValid() {
		reasons = append(reasons, "examType must be one of the supported exam types")
	}
	if name == "" {
		reasons = append(reasons, "patientName is required")
	}
	if identifier == "" {
		reasons = append(reasons, "patientIdentifier is required")
	}
	if in.FormData == nil {
		reasons = append(reasons, "formData is required")
	}
	if len(reasons) > 0 {
		return nil, dErrors.Validation("submission input is incomplete", reasons...)
	}

	return &Submission{
		ID:                 id,
		ClinicID:           creator.ClinicID,
		ExamType:           in.ExamType,
		Status:             StatusDraft,
		FormData:           cloneFormData(in.FormData),
		PatientName:        name,
		PatientIdentifier:  identifier,
		PatientDateOfBirth: in.PatientDateOfBirth,
		PatientEmail:       strings.TrimSpace(in.PatientEmail),
		PatientMobile:      strings.TrimSpace(in.PatientMobile),
		ExaminationDate:    in.ExaminationDate,
		CreatedByID:        creator.UserID,
		AssignedDoctorID:   in.AssignedDoctorID,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Clone returns a copy that shares nothing mutable with s. FormData is
// copied through every nested map and slice.
func (s *Submission) Clone() *Submission {
	c := *s
	c.FormData = cloneFormData(s.FormData)
	return &c
}

func cloneFormData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneFormData(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func (s *Submission) IsDeleted() bool { return s.DeletedAt != nil }

// IsAssignee reports whether user currently holds the collaborative assignment.
func (s *Submission) IsAssignee(user domain.UserID) bool {
	return s.AssignedToID != nil && *s.AssignedToID == user
}

func (s *Submission) IsApprover(user domain.UserID) bool {
	return s.ApprovedByID != nil && *s.ApprovedByID == user
}

func (s *Submission) requireStatus(op string, allowed ...Status) error {
	for _, st := range allowed {
		if s.Status == st {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, fmt.Sprintf("cannot %s a submission in status %s", op, s.Status))
}

// moveTo is the only place Status changes. Deleted rows are frozen and every
// move must be an edge of the status graph.
func (s *Submission) moveTo(next Status, now time.Time) error {
	if s.IsDeleted() {
		return dErrors.New(dErrors.CodeInvariantViolation, "deleted submissions cannot change status")
	}
	if !s.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("no transition from %s to %s", s.Status, next))
	}
	s.Status = next
	s.UpdatedAt = now
	return nil
}

func (s *Submission) markSubmitted(by domain.UserID, now time.Time) error {
	if err := s.moveTo(StatusSubmitted, now); err != nil {
		return err
	}
	s.ApprovedByID = &by
	s.ApprovedAt = &now
	s.SubmittedAt = &now
	s.DoctorEditByID = nil
	return nil
}

// SubmitForApproval moves a draft forward. Doctors and admins submit directly
// and become the approver; nurses route the draft to the approval queue.
func (s *Submission) SubmitForApproval(by Actor, now time.Time) error {
	if err := s.requireStatus("submit", StatusDraft); err != nil {
		return err
	}
	if by.IsDoctor() || by.IsAdmin() {
		return s.markSubmitted(by.UserID, now)
	}
	if err := s.moveTo(StatusPendingApproval, now); err != nil {
		return err
	}
	s.DoctorEditByID = nil
	return nil
}

// ConvertToDraftForDoctorEdit pulls a pending item back to draft so the
// editing doctor can submit it directly afterwards.
func (s *Submission) ConvertToDraftForDoctorEdit(doctor domain.UserID, now time.Time) error {
	if err := s.requireStatus("edit", StatusPendingApproval); err != nil {
		return err
	}
	if err := s.moveTo(StatusDraft, now); err != nil {
		return err
	}
	s.DoctorEditByID = &doctor
	return nil
}

// Assign hands the submission to target. Reports whether this replaced an
// existing in_progress assignment.
func (s *Submission) Assign(target domain.UserID, targetRole domain.Role, by domain.UserID, now time.Time) (bool, error) {
	if s.IsDeleted() {
		return false, dErrors.New(dErrors.CodeForbidden, "cannot assign a deleted submission")
	}
	if err := s.requireStatus("assign", StatusDraft, StatusInProgress); err != nil {
		return false, err
	}
	if !targetRole.CanBeAssigned() {
		return false, dErrors.Validation("invalid assignment target", "assignee must be a doctor or nurse")
	}
	reassigned := s.Status == StatusInProgress
	if err := s.moveTo(StatusInProgress, now); err != nil {
		return false, err
	}
	s.AssignedToID = &target
	s.AssignedToRole = targetRole
	s.AssignedAt = &now
	s.AssignedByID = &by
	return reassigned, nil
}

// SubmitCollaborative finalizes an in_progress draft; the submitter becomes the approver.
func (s *Submission) SubmitCollaborative(by domain.UserID, now time.Time) error {
	if err := s.requireStatus("submit", StatusInProgress); err != nil {
		return err
	}
	return s.markSubmitted(by, now)
}

func (s *Submission) Approve(by domain.UserID, now time.Time) error {
	if err := s.requireStatus("approve", StatusPendingApproval); err != nil {
		return err
	}
	if err := s.markSubmitted(by, now); err != nil {
		return err
	}
	s.LastReviewedByID = &by
	return nil
}

// Reject records the reviewer in ApprovedByID/ApprovedAt for provenance.
func (s *Submission) Reject(by domain.UserID, reason string, now time.Time) error {
	if err := s.requireStatus("reject", StatusPendingApproval); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return dErrors.Validation("rejection reason is required", "reason must not be empty")
	}
	if err := s.moveTo(StatusRejected, now); err != nil {
		return err
	}
	s.RejectedReason = reason
	s.ApprovedByID = &by
	s.ApprovedAt = &now
	s.LastReviewedByID = &by
	return nil
}

// Reopen returns a rejected submission to draft. RejectedReason and
// ApprovedByID are kept as history; only ApprovedAt is cleared.
func (s *Submission) Reopen(now time.Time) error {
	if err := s.requireStatus("reopen", StatusRejected); err != nil {
		return err
	}
	if err := s.moveTo(StatusDraft, now); err != nil {
		return err
	}
	s.ApprovedAt = nil
	return nil
}

func (s *Submission) SoftDelete(now time.Time) error {
	if s.IsDeleted() {
		return dErrors.New(dErrors.CodeForbidden, "submission is already deleted")
	}
	if err := s.requireStatus("delete", StatusDraft); err != nil {
		return err
	}
	s.DeletedAt = &now
	s.UpdatedAt = now
	return nil
}

// RequireEditable checks the statuses in which field edits are allowed.
func (s *Submission) RequireEditable() error {
	return s.requireStatus("update", StatusDraft, StatusInProgress, StatusPendingApproval)
}

// RequireClaimable checks that the submission is waiting on its assignee.
func (s *Submission) RequireClaimable() error {
	return s.requireStatus("claim", StatusInProgress)
}

// ApplyPatch copies the set fields of p and returns the names of the fields
// that actually changed.
func (s *Submission) ApplyPatch(p UpdateInput, now time.Time) ([]string, error) {
	var changed []string
	if p.ExamType != nil && *p.ExamType != s.ExamType {
		if !p.ExamType.IsValid() {
			return nil, dErrors.Validation("invalid update", "examType must be one of the supported exam types")
		}
		s.ExamType = *p.ExamType
		changed = append(changed, "examType")
	}
	if p.FormData != nil {
		s.FormData = cloneFormData(p.FormData)
		changed = append(changed, "formData")
	}
	if p.PatientName != nil {
		name := strings.TrimSpace(*p.PatientName)
		if name == "" {
			return nil, dErrors.Validation("invalid update", "patientName must not be empty")
		}
		if name != s.PatientName {
			s.PatientName = name
			changed = append(changed, "patientName")
		}
	}
	if p.PatientIdentifier != nil {
		identifier := strings.TrimSpace(*p.PatientIdentifier)
		if identifier == "" {
			return nil, dErrors.Validation("invalid update", "patientIdentifier must not be empty")
		}
		if identifier != s.PatientIdentifier {
			s.PatientIdentifier = identifier
			changed = append(changed, "patientIdentifier")
		}
	}
	if p.PatientDateOfBirth != nil {
		s.PatientDateOfBirth = p.PatientDateOfBirth
		changed = append(changed, "patientDateOfBirth")
	}
	if p.PatientEmail != nil && strings.TrimSpace(*p.PatientEmail) != s.PatientEmail {
		s.PatientEmail = strings.TrimSpace(*p.PatientEmail)
		changed = append(changed, "patientEmail")
	}
	if p.PatientMobile != nil && strings.TrimSpace(*p.PatientMobile) != s.PatientMobile {
		s.PatientMobile = strings.TrimSpace(*p.PatientMobile)
		changed = append(changed, "patientMobile")
	}
	if p.ExaminationDate != nil {
		s.ExaminationDate = p.ExaminationDate
		changed = append(changed, "examinationDate")
	}
	if p.AssignedDoctorID != nil {
		s.AssignedDoctorID = p.AssignedDoctorID
		changed = append(changed, "assignedDoctorId")
	}
	s.UpdatedAt = now
	return changed, nil
}
