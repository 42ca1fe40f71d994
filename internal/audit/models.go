// Package audit records the append-only trail of submission workflow events.
//
// Entries are written by the workflow engine inside the same unit of work as
// the state change they describe. The publisher is fail-closed: if an entry
// cannot be persisted the triggering operation fails.
package audit

import (
	"context"
	"fmt"
	"time"

	"examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

// EventType is the closed set of workflow events.
type EventType string

const (
	EventCreated    EventType = "created"
	EventSubmitted  EventType = "submitted"
	EventApproved   EventType = "approved"
	EventRejected   EventType = "rejected"
	EventAssigned   EventType = "assigned"
	EventReassigned EventType = "reassigned"
	EventClaimed    EventType = "claimed"
	EventUpdated    EventType = "updated"
	EventDeleted    EventType = "deleted"
)

func (e EventType) IsValid() bool {
	switch e {
	case EventCreated, EventSubmitted, EventApproved, EventRejected, EventAssigned,
		EventReassigned, EventClaimed, EventUpdated, EventDeleted:
		return true
	}
	return false
}

func (e EventType) String() string { return string(e) }

// Entry is one immutable audit fact.
//
// Invariants:
//   - EventType is valid and Changes is the variant for that event type
//   - SubmissionID and UserID are non-nil
//   - Sequence is assigned by the store and orders entries by insertion
type Entry struct {
	ID           domain.AuditEntryID `json:"id"`
	SubmissionID domain.SubmissionID `json:"submissionId"`
	UserID       domain.UserID       `json:"userId"`
	EventType    EventType           `json:"eventType"`
	Timestamp    time.Time           `json:"timestamp"`
	Sequence     int64               `json:"sequence"`
	Changes      Changes             `json:"changes"`
}

// NewEntry validates and builds an entry. The timestamp is server-assigned.
func NewEntry(submissionID domain.SubmissionID, userID domain.UserID, eventType EventType, changes Changes, now time.Time) (*Entry, error) {
	if !eventType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unknown audit event type %q", eventType))
	}
	if submissionID.IsNil() || userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires submission and user")
	}
	if changes == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires changes")
	}
	if !changes.allows(eventType) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("changes of type %T do not describe a %s event", changes, eventType))
	}
	return &Entry{
		ID:           domain.NewAuditEntryID(),
		SubmissionID: submissionID,
		UserID:       userID,
		EventType:    eventType,
		Timestamp:    now,
		Changes:      changes,
	}, nil
}

// Store persists entries. Append joins the caller's transaction when one is
// carried in the context.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListBySubmission(ctx context.Context, submissionID domain.SubmissionID) ([]Entry, error)
}
