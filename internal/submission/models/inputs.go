package models

import (
	"time"

	"examflow/pkg/domain"
)

// CreateInput carries a new submission. AssignTo takes precedence over
// SaveAsDraft, which takes precedence over role-based routing.
type CreateInput struct {
	ExamType           ExamType
	FormData           map[string]any
	PatientName        string
	PatientIdentifier  string
	PatientDateOfBirth *time.Time
	PatientEmail       string
	PatientMobile      string
	ExaminationDate    *time.Time
	RouteForApproval   bool
	SaveAsDraft        bool
	AssignedDoctorID   *domain.UserID
	AssignTo           *domain.UserID
	AssignNote         string
}

// CreateRoute is the initial path a new submission takes out of draft.
type CreateRoute string

const (
	CreateRouteDraft         CreateRoute = "draft"
	CreateRouteApproval      CreateRoute = "approval"
	CreateRouteDirect        CreateRoute = "direct"
	CreateRouteCollaborative CreateRoute = "collaborative"
)

// DecideCreateRoute picks where a new submission lands for this caller.
func DecideCreateRoute(actor Actor, in CreateInput) CreateRoute {
	switch {
	case in.AssignTo != nil:
		return CreateRouteCollaborative
	case in.SaveAsDraft:
		return CreateRouteDraft
	case actor.IsDoctor() || actor.IsAdmin():
		return CreateRouteDirect
	case in.RouteForApproval:
		return CreateRouteApproval
	default:
		return CreateRouteDraft
	}
}

// UpdateInput is a partial edit; nil fields are left unchanged.
type UpdateInput struct {
	ExamType           *ExamType
	FormData           map[string]any
	PatientName        *string
	PatientIdentifier  *string
	PatientDateOfBirth *time.Time
	PatientEmail       *string
	PatientMobile      *string
	ExaminationDate    *time.Time
	AssignedDoctorID   *domain.UserID
	AssignTo           *domain.UserID
	AssignNote         string
}

// HasFieldChanges reports whether the patch touches any submission field
// besides the assignment.
func (p UpdateInput) HasFieldChanges() bool {
	return p.ExamType != nil || p.FormData != nil || p.PatientName != nil ||
		p.PatientIdentifier != nil || p.PatientDateOfBirth != nil || p.PatientEmail != nil ||
		p.PatientMobile != nil || p.ExaminationDate != nil || p.AssignedDoctorID != nil
}

type AssignInput struct {
	TargetUserID domain.UserID
	Note         string
}

// ActionResult answers operations that return no submission body.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ListFilters narrows a listing. Zero values mean "no filter".
type ListFilters struct {
	Status            Status
	ExamType          ExamType
	PatientName       string
	PatientIdentifier string
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
	IncludeDeleted    bool
	Page              int
	Limit             int
}

// Normalize clamps pagination to page >= 1 and 1 <= limit <= MaxPageLimit.
func (f *ListFilters) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
}

func (f ListFilters) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Scope is the visibility predicate derived from the caller.
//
// Clinic-wide scope: every row of ClinicID (deleted rows only with IncludeDeleted).
// Participant scope: rows where ParticipantID is creator, approver or
// assignee in any clinic, plus pending_approval rows of ReviewClinicID when set.
type Scope struct {
	ClinicWide     bool
	ClinicID       domain.ClinicID
	ParticipantID  domain.UserID
	ReviewClinicID *domain.ClinicID
}

// Query is a store-level list request: a scope plus normalized filters.
type Query struct {
	Scope   Scope
	Filters ListFilters
}

type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// NewPagination derives the page metadata for total matching rows.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

type ListResult struct {
	Data       []*Submission `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// HistoryOrder selects the timeline direction.
type HistoryOrder string

const (
	HistoryOldestFirst HistoryOrder = "oldest_first"
	HistoryNewestFirst HistoryOrder = "newest_first"
)

// ParseHistoryOrder defaults to oldest_first for an empty value.
func ParseHistoryOrder(s string) (HistoryOrder, bool) {
	switch HistoryOrder(s) {
	case "", HistoryOldestFirst:
		return HistoryOldestFirst, true
	case HistoryNewestFirst:
		return HistoryNewestFirst, true
	default:
		return "", false
	}
}

// UnknownUserName is rendered for actors the directory cannot resolve.
const UnknownUserName = "Unknown user"

type HistoryEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	EventType string        `json:"eventType"`
	UserID    domain.UserID `json:"userId"`
	UserName  string        `json:"userName"`
	Details   any           `json:"details"`
}

type History struct {
	SubmissionID domain.SubmissionID `json:"submissionId"`
	Events       []HistoryEvent      `json:"events"`
}
