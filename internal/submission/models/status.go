package models

import (
	dErrors "examflow/pkg/domain-errors"
)

// Status is a submission's workflow state.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusInProgress      Status = "in_progress"
	StatusSubmitted       Status = "submitted"
	StatusRejected        Status = "rejected"
)

// transitions is the complete status graph. submitted is terminal;
// in_progress -> in_progress is a reassignment.
var transitions = map[Status][]Status{
	StatusDraft:           {StatusPendingApproval, StatusSubmitted, StatusInProgress},
	StatusPendingApproval: {StatusSubmitted, StatusRejected, StatusDraft},
	StatusInProgress:      {StatusSubmitted, StatusInProgress},
	StatusRejected:        {StatusDraft},
	StatusSubmitted:       {},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status")
	}
	return st, nil
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the graph has an edge s -> next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) String() string { return string(s) }

// ExamType classifies the medical examination; the validator owns each
// type's payload schema.
type ExamType string

const (
	ExamTypeSixMonthlyMDW   ExamType = "six_monthly_mdw"
	ExamTypeFullMedicalExam ExamType = "full_medical_exam"
	ExamTypeDriverMedical   ExamType = "driver_medical"
	ExamTypeWorkPermit      ExamType = "work_permit"
	ExamTypeAgedDrivers     ExamType = "aged_drivers"
)

var validExamTypes = map[ExamType]bool{
	ExamTypeSixMonthlyMDW:   true,
	ExamTypeFullMedicalExam: true,
	ExamTypeDriverMedical:   true,
	ExamTypeWorkPermit:      true,
	ExamTypeAgedDrivers:     true,
}

func ParseExamType(s string) (ExamType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "exam type cannot be empty")
	}
	et := ExamType(s)
	if !et.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid exam type")
	}
	return et, nil
}

func (e ExamType) IsValid() bool { return validExamTypes[e] }

func (e ExamType) String() string { return string(e) }
