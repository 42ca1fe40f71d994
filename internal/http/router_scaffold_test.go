package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examflow/pkg/domain"
	"examflow/pkg/testutil"
)

func TestRouterScaffold(t *testing.T) {
	testutil.Given(t, "the HTTP router", func(t *testing.T) {
		router, jwt := newTestRouter(t, nil)

		testutil.When(t, "calling an unknown route", func(t *testing.T) {
			rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/patients", nil))

			testutil.Then(t, "it should respond with not found", func(t *testing.T) {
				assert.Equal(t, http.StatusNotFound, rr.Code)
			})
		})

		testutil.When(t, "calling a health route with the wrong method", func(t *testing.T) {
			rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodDelete, "/healthz", nil))

			testutil.Then(t, "it should respond with method not allowed", func(t *testing.T) {
				assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			})
		})

		testutil.When(t, "approving with an expired token", func(t *testing.T) {
			token, err := jwt.GenerateAccessToken(domain.UserID(uuid.New()), domain.RoleDoctor, domain.ClinicID(uuid.New()), -time.Minute)
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/submissions/"+uuid.NewString()+"/approve", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it should respond with unauthorized", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
			})
		})
	})
}
