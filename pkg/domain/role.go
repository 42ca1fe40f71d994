package domain

import dErrors "examflow/pkg/domain-errors"

// Role is the caller's staff role within their clinic.
// Invariant: the value must be one of the supported roles.
//
// Usage: construct via ParseRole at trust boundaries (token claims, request
// bodies) to enforce the allowlist; direct casting bypasses validation.
type Role string

const (
	RoleNurse  Role = "nurse"
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

var validRoles = map[Role]bool{
	RoleNurse:  true,
	RoleDoctor: true,
	RoleAdmin:  true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanBeAssigned reports whether users with this role may receive a
// collaborative assignment. Admins coordinate but never hold drafts.
func (r Role) CanBeAssigned() bool {
	return r == RoleDoctor || r == RoleNurse
}

func (r Role) String() string {
	return string(r)
}
