// AngelaMos | 2026
// burst_test.go

package webhook

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/middleware"
)

func TestReceiveAcknowledgesBurstBehindServerChain(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := &recordingSink{}
	gw := NewGateway(config.WebhookConfig{
		AppSecret:     string(testSecret),
		VerifyToken:   "verify-me",
		OwnPlatformID: ownID,
		MaxBodyBytes:  1 << 20,
	}, false, sink, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.SecurityHeaders(true))

	gw.RegisterRoutes(router)

	apiLimiter := middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
		Scope: "api",
		Limit: middleware.PerMinute(1, 1),
	}).Handler
	router.Route("/v1", func(r chi.Router) {
		r.Use(apiLimiter)
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	const deliveries = 40
	statuses := map[int]int{}
	for i := 0; i < deliveries; i++ {
		body := fmt.Sprintf(`{"object":"instagram","entry":[{"id":"%s","messaging":[`+
			`{"sender":{"id":"123"},"recipient":{"id":"%s"},`+
			`"message":{"mid":"mid.%d","text":"hello"}}]}]}`, ownID, ownID, i)

		rec := post(router, body, Sign([]byte(body), testSecret))
		statuses[rec.Code]++
	}

	require.Equal(t, map[int]int{http.StatusOK: deliveries}, statuses)
	assert.Equal(t, deliveries, sink.count())

	// the API group is still throttled
	var limited bool
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited)
}
