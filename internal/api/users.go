package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/timebank-network/timebank/internal/domain"
)

// ─── User Handlers ──────────────────────────────────────────────────────────
//
// GET /api/users/{id}/balance — latest committed balance
// GET /api/users/{id}/ledger  — journal history, newest first
// PUT /api/users/profile      — update the actor's profile fields

// handleBalance returns the latest committed balance for a user.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	balance, err := s.ledger.Balance(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      id,
		"time_credits": balance,
	})
}

// handleLedger returns the user's journal rows, newest first.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	entries, err := s.ledger.Entries(chi.URLParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleUpdateProfile updates the actor's own profile. Balance is not
// reachable from here; only the ledger moves credits.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return
	}

	var p domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Name == nil && p.Skills == nil && p.Location == nil && p.Availability == nil {
		writeError(w, http.StatusBadRequest, "no update data provided")
		return
	}

	u, err := s.users.UpdateProfile(actorID, p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
