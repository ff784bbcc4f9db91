package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sweeper/internal/api/handlers"
	"github.com/wonny/sweeper/internal/marketdata"
	"github.com/wonny/sweeper/internal/selection"
	"github.com/wonny/sweeper/internal/sweep"
	"github.com/wonny/sweeper/internal/telemetry"
	"github.com/wonny/sweeper/pkg/logger"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.Nop()
	reg := prometheus.NewRegistry()
	tracker := telemetry.NewPerfTracker(telemetry.NewMetrics(reg), log)

	gate := marketdata.NewGate(nil, log)
	scheduler := sweep.NewScheduler(gate, nil, tracker, log, 2)
	repo := sweep.NewMemoryRepository(selection.NewSelector(log), log)
	svc := sweep.NewService(scheduler, repo, log)

	return NewRouter(
		handlers.NewSweepHandler(svc, log),
		handlers.NewProgressHub(log),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		log,
	)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sweeper_runs_in_flight")
}

func TestUnknownRun(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sweeps/nope/best", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"put run", http.MethodPut, "/api/sweeps/abc"},
		{"patch results", http.MethodPatch, "/api/sweeps/abc/results"},
		{"delete best", http.MethodDelete, "/api/sweeps/abc/best"},
		{"post health", http.MethodPost, "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.method)
		})
	}
}

func TestUnknownPath(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
