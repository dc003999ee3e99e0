package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timebank-network/timebank/internal/domain"
)

// ─── Task Handlers ──────────────────────────────────────────────────────────
//
// GET  /api/tasks                — browse (status defaults to open)
// POST /api/tasks                — create
// GET  /api/tasks/my             — tasks where actor is owner or assignee
// GET  /api/tasks/{id}           — direct lookup
// POST /api/tasks/{id}/assign    — accept an open task
// POST /api/tasks/{id}/evidence  — upload a before/after photo reference
// POST /api/tasks/{id}/validate  — finalize and pay
// POST /api/tasks/{id}/cancel    — owner cancels an open task

// handleListTasks browses tasks. Status defaults to open; "all" clears a
// constraint, matching what the browse screen sends.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.TaskFilter{
		Query:    q.Get("q"),
		Location: q.Get("location"),
	}
	status := q.Get("status")
	if status == "" {
		status = string(domain.StatusOpen)
	}
	if status != "all" {
		filter.Status = domain.TaskStatus(status)
	}
	if t := q.Get("task_type"); t != "" && t != "all" {
		filter.Type = domain.TaskType(t)
	}

	tasks, err := s.engine.List(filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// handleMyTasks returns tasks the actor owns or is assigned to.
func (s *Server) handleMyTasks(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return
	}
	tasks, err := s.engine.ListFor(actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// handleGetTask returns one task by id.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleCreateTask creates a new open task owned by the actor.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return
	}

	var in domain.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := s.engine.Create(actorID, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleAssignTask accepts an open task on behalf of the actor.
func (s *Server) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return
	}

	t, err := s.engine.Assign(chi.URLParam(r, "id"), actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// evidenceRequest is the upload payload. The photo reference is opaque to
// the core; file-to-data-URL encoding happens upstream.
type evidenceRequest struct {
	Slot     domain.EvidenceSlot `json:"slot"`
	PhotoRef string              `json:"photo_ref"`
}

// handleSubmitEvidence uploads one evidence photo reference.
func (s *Server) handleSubmitEvidence(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return
	}

	var req evidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := s.engine.SubmitEvidence(chi.URLParam(r, "id"), actorID, req.Slot, req.PhotoRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleValidateTask finalizes an assigned task and moves the credits.
func (s *Server) handleValidateTask(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return
	}

	t, err := s.engine.Validate(chi.URLParam(r, "id"), actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleCancelTask cancels an open task on behalf of its owner.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return
	}

	t, err := s.engine.Cancel(chi.URLParam(r, "id"), actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
