package models

import "strings"

// Matches evaluates the scope and filters against one row. The postgres
// store expresses the same predicate in SQL.
func (q Query) Matches(s *Submission) bool {
	return q.Scope.matches(s) && q.Filters.matches(s)
}

func (sc Scope) matches(s *Submission) bool {
	if sc.ClinicWide {
		return s.ClinicID == sc.ClinicID
	}
	if s.CreatedByID == sc.ParticipantID || s.IsApprover(sc.ParticipantID) || s.IsAssignee(sc.ParticipantID) {
		return true
	}
	return sc.ReviewClinicID != nil && s.ClinicID == *sc.ReviewClinicID && s.Status == StatusPendingApproval
}

func (f ListFilters) matches(s *Submission) bool {
	if s.IsDeleted() && !f.IncludeDeleted {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.ExamType != "" && s.ExamType != f.ExamType {
		return false
	}
	if f.PatientName != "" && !strings.Contains(strings.ToLower(s.PatientName), strings.ToLower(f.PatientName)) {
		return false
	}
	if f.PatientIdentifier != "" && s.PatientIdentifier != f.PatientIdentifier {
		return false
	}
	if f.CreatedFrom != nil && s.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && s.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}
