// Package directory resolves staff identities (display name, role, clinic)
// for assignment targets and audit history.
package directory

import (
	"context"
	"errors"

	"examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
)

// User is a clinic staff member known to the directory.
type User struct {
	ID       domain.UserID   `json:"id"`
	Name     string          `json:"name"`
	Role     domain.Role     `json:"role"`
	ClinicID domain.ClinicID `json:"clinicId"`
}

// Directory looks up users by id. Lookup returns an error wrapping
// sentinel.ErrNotFound for unknown ids.
type Directory interface {
	Lookup(ctx context.Context, id domain.UserID) (*User, error)
}

// Names resolves display names for ids. Unknown ids are omitted; other
// lookup failures are returned.
func Names(ctx context.Context, dir Directory, ids []domain.UserID) (map[domain.UserID]string, error) {
	names := make(map[domain.UserID]string, len(ids))
	for _, id := range ids {
		if _, seen := names[id]; seen {
			continue
		}
		u, err := dir.Lookup(ctx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		names[id] = u.Name
	}
	return names, nil
}
