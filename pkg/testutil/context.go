package testutil

import (
	"net/http"

	"examflow/pkg/domain"
	"examflow/pkg/requestcontext"
)

// WithIdentity simulates the auth middleware by placing a caller identity on
// the request context.
func WithIdentity(req *http.Request, userID domain.UserID, role domain.Role, clinicID domain.ClinicID) *http.Request {
	return req.WithContext(requestcontext.WithIdentity(req.Context(), userID, role, clinicID))
}
