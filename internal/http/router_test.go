package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examflow/internal/audit"
	auditmemory "examflow/internal/audit/store/memory"
	"examflow/internal/directory"
	jwttoken "examflow/internal/jwt_token"
	"examflow/internal/platform/metrics"
	"examflow/internal/submission/handler"
	"examflow/internal/submission/service"
	"examflow/internal/submission/store"
	"examflow/pkg/domain"
	"examflow/pkg/testutil"
)

func newTestRouter(t *testing.T, checks map[string]Check) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	jwt := jwttoken.NewJWTService("test-key", "examflow")

	svc := service.New(store.NewInMemory(), audit.NewPublisher(auditmemory.NewInMemoryStore()), directory.NewInMemory(),
		service.WithLogger(logger))

	return NewRouter(Deps{
		Logger:      logger,
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		Validator:   jwttoken.NewJWTServiceAdapter(jwt),
		Submissions: handler.New(svc, logger),
		Checks:      checks,
	}), jwt
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "examflow_http_requests_total")
}

func TestReadiness(t *testing.T) {
	router, _ := newTestRouter(t, map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"kafka":    func(context.Context) error { return errors.New("no brokers") },
		"redis":    nil,
	})

	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"postgres":"ok","kafka":"unavailable"}`, rr.Body.String())
}

func TestSubmissionsRequireBearerToken(t *testing.T) {
	router, jwt := newTestRouter(t, nil)

	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/submissions", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	token, err := jwt.GenerateAccessToken(domain.UserID(uuid.New()), domain.RoleDoctor, domain.ClinicID(uuid.New()), time.Minute)
	require.NoError(t, err)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/submissions", map[string]any{
		"examType":          "driver_medical",
		"formData":          map[string]any{"visionTest": "pass"},
		"patientName":       "Tan Ah Kow",
		"patientIdentifier": "S1234567D",
	})
	req.Header.Set("Authorization", "Bearer "+token)
	rr = testutil.DoRequest(router, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	body := testutil.UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, "submitted", (*body)["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
