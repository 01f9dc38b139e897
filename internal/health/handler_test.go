// AngelaMos | 2026
// handler_test.go

package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/socialsync/internal/health"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthy() health.Checker {
	return pingFunc(func(context.Context) error { return nil })
}

func failing() health.Checker {
	return pingFunc(func(context.Context) error { return errors.New("down") })
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		deps       []health.Dependency
		wantStatus int
		wantBody   string
	}{
		{
			name: "all healthy",
			deps: []health.Dependency{
				{Name: "database", Checker: healthy()},
				{Name: "redis", Checker: healthy()},
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "one failing",
			deps: []health.Dependency{
				{Name: "database", Checker: healthy()},
				{Name: "redis", Checker: failing()},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "degraded",
		},
		{
			name:       "nil checker",
			deps:       []health.Dependency{{Name: "database"}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.NewHandler(tt.deps...)
			rec := httptest.NewRecorder()

			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			require.Equal(t, tt.wantStatus, rec.Code)

			var body health.ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body.Status)
			assert.Len(t, body.Checks, len(tt.deps))
		})
	}
}

func TestLivenessDuringShutdown(t *testing.T) {
	h := health.NewHandler()
	h.SetShutdown(true)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "shutting_down")
}
