package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"examflow/internal/submission/models"
	"examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

const (
	dateLayout      = "2006-01-02"
	maxNameLength   = "200"
	maxReasonLength = "2000"
)

// CreateRequest is the body of POST /submissions.
type CreateRequest struct {
	ExamType           string         `json:"examType"`
	FormData           map[string]any `json:"formData"`
	PatientName        string         `json:"patientName"`
	PatientIdentifier  string         `json:"patientIdentifier"`
	PatientDateOfBirth string         `json:"patientDateOfBirth,omitempty"`
	PatientEmail       string         `json:"patientEmail,omitempty"`
	PatientMobile      string         `json:"patientMobile,omitempty"`
	ExaminationDate    string         `json:"examinationDate,omitempty"`
	RouteForApproval   bool           `json:"routeForApproval,omitempty"`
	SaveAsDraft        bool           `json:"saveAsDraft,omitempty"`
	AssignedDoctorID   string         `json:"assignedDoctorId,omitempty"`
	AssignTo           string         `json:"assignTo,omitempty"`
	AssignNote         string         `json:"assignNote,omitempty"`

	input models.CreateInput
}

// Validate checks formats and builds the service input. Required-field and
// payload rules are enforced by the workflow.
func (r *CreateRequest) Validate() error {
	var v reasons
	r.input = models.CreateInput{
		ExamType:          models.ExamType(strings.TrimSpace(r.ExamType)),
		FormData:          r.FormData,
		PatientName:       strings.TrimSpace(r.PatientName),
		PatientIdentifier: strings.TrimSpace(r.PatientIdentifier),
		PatientEmail:      strings.TrimSpace(r.PatientEmail),
		PatientMobile:     strings.TrimSpace(r.PatientMobile),
		RouteForApproval:  r.RouteForApproval,
		SaveAsDraft:       r.SaveAsDraft,
		AssignNote:        strings.TrimSpace(r.AssignNote),
	}
	v.checkName("patientName", r.input.PatientName)
	v.checkEmail(r.input.PatientEmail)
	v.checkMobile(r.input.PatientMobile)
	r.input.PatientDateOfBirth = v.date("patientDateOfBirth", r.PatientDateOfBirth)
	r.input.ExaminationDate = v.date("examinationDate", r.ExaminationDate)
	r.input.AssignedDoctorID = v.userID("assignedDoctorId", r.AssignedDoctorID)
	r.input.AssignTo = v.userID("assignTo", r.AssignTo)
	return v.err("invalid submission request")
}

func (r *CreateRequest) Input() models.CreateInput { return r.input }

// UpdateRequest is the body of PATCH /submissions/{id}. Absent fields are
// left unchanged.
type UpdateRequest struct {
	ExamType           *string        `json:"examType,omitempty"`
	FormData           map[string]any `json:"formData,omitempty"`
	PatientName        *string        `json:"patientName,omitempty"`
	PatientIdentifier  *string        `json:"patientIdentifier,omitempty"`
	PatientDateOfBirth *string        `json:"patientDateOfBirth,omitempty"`
	PatientEmail       *string        `json:"patientEmail,omitempty"`
	PatientMobile      *string        `json:"patientMobile,omitempty"`
	ExaminationDate    *string        `json:"examinationDate,omitempty"`
	AssignedDoctorID   *string        `json:"assignedDoctorId,omitempty"`
	AssignTo           *string        `json:"assignTo,omitempty"`
	AssignNote         string         `json:"assignNote,omitempty"`

	input models.UpdateInput
}

func (r *UpdateRequest) Validate() error {
	var v reasons
	in := models.UpdateInput{
		FormData:          r.FormData,
		PatientName:       r.PatientName,
		PatientIdentifier: r.PatientIdentifier,
		AssignNote:        strings.TrimSpace(r.AssignNote),
	}
	if r.ExamType != nil {
		et, err := models.ParseExamType(strings.TrimSpace(*r.ExamType))
		if err != nil {
			v.add("examType must be one of the supported exam types")
		}
		in.ExamType = &et
	}
	if r.PatientName != nil {
		v.checkName("patientName", strings.TrimSpace(*r.PatientName))
	}
	if r.PatientEmail != nil {
		email := strings.TrimSpace(*r.PatientEmail)
		v.checkEmail(email)
		in.PatientEmail = &email
	}
	if r.PatientMobile != nil {
		mobile := strings.TrimSpace(*r.PatientMobile)
		v.checkMobile(mobile)
		in.PatientMobile = &mobile
	}
	if r.PatientDateOfBirth != nil {
		in.PatientDateOfBirth = v.date("patientDateOfBirth", *r.PatientDateOfBirth)
	}
	if r.ExaminationDate != nil {
		in.ExaminationDate = v.date("examinationDate", *r.ExaminationDate)
	}
	if r.AssignedDoctorID != nil {
		in.AssignedDoctorID = v.requiredUserID("assignedDoctorId", *r.AssignedDoctorID)
	}
	if r.AssignTo != nil {
		in.AssignTo = v.requiredUserID("assignTo", *r.AssignTo)
	}
	r.input = in
	return v.err("invalid update request")
}

func (r *UpdateRequest) Input() models.UpdateInput { return r.input }

// AssignRequest is the body of POST /submissions/{id}/assign.
type AssignRequest struct {
	AssignTo string `json:"assignTo"`
	Note     string `json:"note,omitempty"`

	target domain.UserID
}

func (r *AssignRequest) Validate() error {
	var v reasons
	if id := v.requiredUserID("assignTo", r.AssignTo); id != nil {
		r.target = *id
	}
	r.Note = strings.TrimSpace(r.Note)
	return v.err("invalid assign request")
}

func (r *AssignRequest) Input() models.AssignInput {
	return models.AssignInput{TargetUserID: r.target, Note: r.Note}
}

// ApproveRequest is the optional body of POST /submissions/{id}/approve.
type ApproveRequest struct {
	Notes string `json:"notes,omitempty"`
}

func (r *ApproveRequest) Validate() error {
	r.Notes = strings.TrimSpace(r.Notes)
	if !govalidator.StringLength(r.Notes, "0", maxReasonLength) {
		return dErrors.Validation("invalid approve request", "notes must be at most "+maxReasonLength+" characters")
	}
	return nil
}

// RejectRequest is the body of POST /submissions/{id}/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.Validation("rejection reason is required", "reason must not be empty")
	}
	if !govalidator.StringLength(r.Reason, "1", maxReasonLength) {
		return dErrors.Validation("invalid reject request", "reason must be at most "+maxReasonLength+" characters")
	}
	return nil
}

// parseListFilters reads the listing query string. Malformed values are
// bad requests; absent values mean no filter.
func parseListFilters(q url.Values) (models.ListFilters, error) {
	var f models.ListFilters
	if s := q.Get("status"); s != "" {
		status, err := models.ParseStatus(s)
		if err != nil {
			return f, badQuery("status")
		}
		f.Status = status
	}
	if s := q.Get("examType"); s != "" {
		et, err := models.ParseExamType(s)
		if err != nil {
			return f, badQuery("examType")
		}
		f.ExamType = et
	}
	f.PatientName = strings.TrimSpace(q.Get("patientName"))
	f.PatientIdentifier = strings.TrimSpace(q.Get("patientIdentifier"))

	var err error
	if f.CreatedFrom, err = queryTime(q, "createdFrom", false); err != nil {
		return f, err
	}
	if f.CreatedTo, err = queryTime(q, "createdTo", true); err != nil {
		return f, err
	}
	if s := q.Get("includeDeleted"); s != "" {
		if f.IncludeDeleted, err = strconv.ParseBool(s); err != nil {
			return f, badQuery("includeDeleted")
		}
	}
	if f.Page, err = queryInt(q, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(q, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

func badQuery(name string) error {
	return dErrors.New(dErrors.CodeBadRequest, "invalid query parameter: "+name)
}

func queryInt(q url.Values, name string) (int, error) {
	s := q.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, badQuery(name)
	}
	return n, nil
}

// queryTime accepts RFC 3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func queryTime(q url.Values, name string, endOfDay bool) (*time.Time, error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, badQuery(name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// reasons accumulates field-level validation failures.
type reasons []string

func (v *reasons) add(msg string) { *v = append(*v, msg) }

func (v reasons) err(msg string) error {
	if len(v) == 0 {
		return nil
	}
	return dErrors.Validation(msg, v...)
}

func (v *reasons) checkName(field, name string) {
	if name != "" && !govalidator.StringLength(name, "1", maxNameLength) {
		v.add(field + " must be at most " + maxNameLength + " characters")
	}
}

func (v *reasons) checkEmail(email string) {
	if email != "" && !govalidator.IsEmail(email) {
		v.add("patientEmail must be a valid email address")
	}
}

func (v *reasons) checkMobile(mobile string) {
	if mobile != "" && !govalidator.IsE164(mobile) {
		v.add("patientMobile must be in E.164 format")
	}
}

func (v *reasons) date(field, s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		v.add(field + " must be a date in YYYY-MM-DD format")
		return nil
	}
	return &t
}

func (v *reasons) userID(field, s string) *domain.UserID {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return v.requiredUserID(field, s)
}

func (v *reasons) requiredUserID(field, s string) *domain.UserID {
	id, err := domain.ParseUserID(strings.TrimSpace(s))
	if err != nil {
		v.add(field + " must be a valid user id")
		return nil
	}
	return &id
}
