package audit

import (
	"encoding/json"
	"fmt"

	"examflow/pkg/domain"
)

// Changes is the typed, event-specific payload of an entry. Each variant
// describes exactly the event types it allows.
type Changes interface {
	allows(EventType) bool
}

// SubmitRoute records how a submission reached submitted or pending_approval.
type SubmitRoute string

const (
	RouteDirect        SubmitRoute = "direct"
	RouteApproval      SubmitRoute = "approval"
	RouteCollaborative SubmitRoute = "collaborative"
)

// Update actions carried by UpdatedChanges.
const (
	ActionEdited   = "edited"
	ActionReopened = "reopened"
)

type CreatedChanges struct {
	Status   string `json:"status"`
	ExamType string `json:"examType"`
}

type SubmittedChanges struct {
	Route      SubmitRoute `json:"route"`
	FromStatus string      `json:"fromStatus,omitempty"`
	ToStatus   string      `json:"toStatus"`
}

type ApprovedChanges struct {
	Notes string `json:"notes,omitempty"`
}

type RejectedChanges struct {
	Reason string `json:"reason"`
}

// AssignedChanges describes both first assignments and reassignments.
type AssignedChanges struct {
	AssignedToID       domain.UserID  `json:"assignedToId"`
	AssignedToName     string         `json:"assignedToName"`
	AssignedToRole     domain.Role    `json:"assignedToRole"`
	Note               string         `json:"note,omitempty"`
	PreviousAssigneeID *domain.UserID `json:"previousAssigneeId,omitempty"`
}

type ClaimedChanges struct {
	AssignedToID domain.UserID `json:"assignedToId"`
}

// UpdatedChanges covers field edits, the doctor-edit conversion (FromStatus
// and ToStatus differ) and reopen (Action reopened).
type UpdatedChanges struct {
	Action     string   `json:"action"`
	Fields     []string `json:"fields,omitempty"`
	FromStatus string   `json:"fromStatus,omitempty"`
	ToStatus   string   `json:"toStatus,omitempty"`
}

// DeletedChanges snapshots identifying data for forensics.
type DeletedChanges struct {
	PatientName string `json:"patientName"`
	ExamType    string `json:"examType"`
}

func (CreatedChanges) allows(e EventType) bool   { return e == EventCreated }
func (SubmittedChanges) allows(e EventType) bool { return e == EventSubmitted }
func (ApprovedChanges) allows(e EventType) bool  { return e == EventApproved }
func (RejectedChanges) allows(e EventType) bool  { return e == EventRejected }
func (AssignedChanges) allows(e EventType) bool {
	return e == EventAssigned || e == EventReassigned
}
func (ClaimedChanges) allows(e EventType) bool { return e == EventClaimed }
func (UpdatedChanges) allows(e EventType) bool { return e == EventUpdated }
func (DeletedChanges) allows(e EventType) bool { return e == EventDeleted }

// EncodeChanges serializes a payload for storage; the event type is stored
// alongside and acts as the discriminator.
func EncodeChanges(c Changes) ([]byte, error) {
	return json.Marshal(c)
}

// DecodeChanges restores the typed variant for eventType.
func DecodeChanges(eventType EventType, raw []byte) (Changes, error) {
	var (
		c   Changes
		err error
	)
	switch eventType {
	case EventCreated:
		c, err = decodeAs[CreatedChanges](raw)
	case EventSubmitted:
		c, err = decodeAs[SubmittedChanges](raw)
	case EventApproved:
		c, err = decodeAs[ApprovedChanges](raw)
	case EventRejected:
		c, err = decodeAs[RejectedChanges](raw)
	case EventAssigned, EventReassigned:
		c, err = decodeAs[AssignedChanges](raw)
	case EventClaimed:
		c, err = decodeAs[ClaimedChanges](raw)
	case EventUpdated:
		c, err = decodeAs[UpdatedChanges](raw)
	case EventDeleted:
		c, err = decodeAs[DeletedChanges](raw)
	default:
		return nil, fmt.Errorf("unknown audit event type %q", eventType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s changes: %w", eventType, err)
	}
	return c, nil
}

func decodeAs[T Changes](raw []byte) (Changes, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// UnmarshalJSON restores Changes using the entry's event type.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	var aux struct {
		plain
		Changes json.RawMessage `json:"changes"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	changes, err := DecodeChanges(aux.EventType, aux.Changes)
	if err != nil {
		return err
	}
	*e = Entry(aux.plain)
	e.Changes = changes
	return nil
}
