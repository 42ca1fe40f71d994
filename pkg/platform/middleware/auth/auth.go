// Package auth authenticates bearer tokens and places the trusted caller
// identity (user, role, clinic) in the request context.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"examflow/pkg/domain"
	"examflow/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	UserID   string
	Role     string
	ClinicID string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			userID, err := domain.ParseUserID(claims.UserID)
			if err != nil {
				rejectClaims(w, logger, r, "user_id", err)
				return
			}
			role, err := domain.ParseRole(claims.Role)
			if err != nil {
				rejectClaims(w, logger, r, "role", err)
				return
			}
			clinicID, err := domain.ParseClinicID(claims.ClinicID)
			if err != nil {
				rejectClaims(w, logger, r, "clinic_id", err)
				return
			}

			ctx = requestcontext.WithIdentity(ctx, userID, role, clinicID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejectClaims(w http.ResponseWriter, logger *slog.Logger, r *http.Request, claim string, err error) {
	ctx := r.Context()
	logger.WarnContext(ctx, "unauthorized access - malformed identity claim",
		"claim", claim,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
}
