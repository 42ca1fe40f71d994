// Package domain holds the primitive value types shared across modules:
// typed identifiers and caller roles. Construct them with the Parse functions
// at trust boundaries; direct conversion from uuid.UUID bypasses validation.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "examflow/pkg/domain-errors"
)

// UserID identifies a staff member (nurse, doctor, admin).
type UserID uuid.UUID

// ClinicID identifies the clinic a submission and its staff belong to.
type ClinicID uuid.UUID

// SubmissionID identifies one medical examination submission.
type SubmissionID uuid.UUID

// AuditEntryID identifies one immutable audit trail entry.
type AuditEntryID uuid.UUID

func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

func ParseClinicID(s string) (ClinicID, error) {
	u, err := parseUUID(s, "clinic ID")
	return ClinicID(u), err
}

func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID(s, "submission ID")
	return SubmissionID(u), err
}

func ParseAuditEntryID(s string) (AuditEntryID, error) {
	u, err := parseUUID(s, "audit entry ID")
	return AuditEntryID(u), err
}

// parseUUID enforces: non-empty, well-formed, not the nil UUID.
func parseUUID(s, label string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }
func (id UserID) UUID() uuid.UUID       { return uuid.UUID(id) }
func (id ClinicID) String() string      { return uuid.UUID(id).String() }
func (id ClinicID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ClinicID) UUID() uuid.UUID     { return uuid.UUID(id) }
func (id SubmissionID) String() string  { return uuid.UUID(id).String() }
func (id SubmissionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) UUID() uuid.UUID { return uuid.UUID(id) }
func (id AuditEntryID) String() string  { return uuid.UUID(id).String() }
func (id AuditEntryID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) UUID() uuid.UUID { return uuid.UUID(id) }

// Text marshalling keeps the canonical string form in JSON payloads.

func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id ClinicID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *ClinicID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id SubmissionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *SubmissionID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id AuditEntryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *AuditEntryID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
