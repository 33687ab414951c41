package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/checkin-runner/internal/proxy"
	"github.com/shehryarbajwa/checkin-runner/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(proxyServer *proxy.Server, rateLimiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.Healthz).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()

	// Triggers are rate limited per account
	limited := RateLimitMiddleware(rateLimiter)
	api.Handle("/runs", limited(http.HandlerFunc(h.CreateRun))).Methods("POST")

	api.HandleFunc("/runs", h.ListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	api.HandleFunc("/runs/{id}/screenshot", h.GetRunScreenshot).Methods("GET")

	// Live debugging of a running browser
	api.HandleFunc("/runs/{id}/debug", h.GetDebugURL).Methods("GET")
	api.HandleFunc("/runs/{id}/ws", func(w http.ResponseWriter, r *http.Request) {
		proxyServer.HandleDebugConnection(w, r, mux.Vars(r)["id"])
	}).Methods("GET")

	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
