// Package api provides the HTTP server for the timebank core.
// It exposes the task lifecycle, ledger and profile operations consumed by
// the (external) presentation layer. Session issuance is an external
// collaborator: the acting user arrives as an explicit X-User-ID header
// and is passed into every engine operation — the core never reads
// ambient session state.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timebank-network/timebank/internal/app/lifecycle"
	"github.com/timebank-network/timebank/internal/domain"
)

// actorHeader carries the authenticated user id, set by the upstream
// session layer.
const actorHeader = "X-User-ID"

// Server is the timebank HTTP API server.
type Server struct {
	engine         *lifecycle.Engine
	ledger         domain.Ledger
	users          domain.UserStore
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(engine *lifecycle.Engine, ledger domain.Ledger, users domain.UserStore) *Server {
	return &Server{engine: engine, ledger: ledger, users: users}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/my", s.handleMyTasks)
			r.Get("/{id}", s.handleGetTask)
			r.Post("/{id}/assign", s.handleAssignTask)
			r.Post("/{id}/evidence", s.handleSubmitEvidence)
			r.Post("/{id}/validate", s.handleValidateTask)
			r.Post("/{id}/cancel", s.handleCancelTask)
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}/balance", s.handleBalance)
			r.Get("/{id}/ledger", s.handleLedger)
			r.Put("/profile", s.handleUpdateProfile)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// actor extracts the acting user id. Empty means the upstream session
// layer did not authenticate the request.
func actor(r *http.Request) string {
	return r.Header.Get(actorHeader)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. The
// distinctions matter to the client: "someone already took this task"
// (409) is not "you don't have permission" (403) is not "you're missing
// evidence" (422).
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameAccount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEvidenceMissing):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance), errors.Is(err, domain.ErrTransferFailed):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrBusy):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers for the browser client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+actorHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
