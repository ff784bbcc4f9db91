package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/sweeper/internal/api/handlers"
	"github.com/wonny/sweeper/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
// metrics may be nil when METRICS_ENABLED=false.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(sweepHandler *handlers.SweepHandler, hub *handlers.ProgressHub, metrics http.Handler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}

	// Progress stream
	if hub != nil {
		r.Handle("/ws/sweeps/progress", hub).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// subrouter는 메서드 불일치를 404로 보고하므로 직접 지정
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	// Sweep endpoints
	api.HandleFunc("/sweeps", sweepHandler.RunSweep).Methods("POST")
	api.HandleFunc("/sweeps/{id}", sweepHandler.GetRun).Methods("GET")
	api.HandleFunc("/sweeps/{id}", sweepHandler.DeleteRun).Methods("DELETE")
	api.HandleFunc("/sweeps/{id}/results", sweepHandler.GetResults).Methods("GET")
	api.HandleFunc("/sweeps/{id}/best", sweepHandler.GetBest).Methods("GET")
	api.HandleFunc("/sweeps/{id}/best", sweepHandler.RecomputeBest).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "sweeper-api",
	})
}

// methodNotAllowedHandler answers a known path requested with the wrong method
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "method " + r.Method + " not allowed",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
