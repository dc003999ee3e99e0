// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"strings"
	"time"
)

// ─── Task Types ─────────────────────────────────────────────────────────────

// TaskStatus is the lifecycle state of a task.
// validated and cancelled are terminal; no transition leaves them.
type TaskStatus string

const (
	StatusOpen      TaskStatus = "open"
	StatusAssigned  TaskStatus = "assigned"
	StatusValidated TaskStatus = "validated"
	StatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s TaskStatus) Terminal() bool {
	return s == StatusValidated || s == StatusCancelled
}

// TaskType distinguishes help offered from help requested.
type TaskType string

const (
	TypeOffer   TaskType = "offer"
	TypeRequest TaskType = "request"
)

// EvidenceSlot names one of the two completion-evidence photo slots.
type EvidenceSlot string

const (
	SlotBefore EvidenceSlot = "before"
	SlotAfter  EvidenceSlot = "after"
)

// Duration bounds for a task, in minutes.
const (
	MinDuration = 15
	MaxDuration = 60
)

// Task is a unit of help offered or requested, tradable for time-credits.
// AssignedTo is set iff Status is assigned or validated, and is never the
// creator. Status is mutated only through TaskStore.SetStatus.
type Task struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Duration       int                 `json:"duration"` // minutes, 15–60
	CreditsOffered int64               `json:"credits_offered"`
	Type           TaskType            `json:"task_type"`
	SkillsRequired []string            `json:"skills_required"`
	Location       string              `json:"location"`
	CreatedBy      string              `json:"created_by"`
	AssignedTo     string              `json:"assigned_to,omitempty"`
	Status         TaskStatus          `json:"status"`
	BeforePhoto    string              `json:"before_photo,omitempty"`
	AfterPhoto     string              `json:"after_photo,omitempty"`
	Validation     *VerificationResult `json:"validation_result,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	AssignedAt     *time.Time          `json:"assigned_at,omitempty"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
}

// HasEvidence reports whether both photo slots are populated.
func (t Task) HasEvidence() bool {
	return t.BeforePhoto != "" && t.AfterPhoto != ""
}

// VerificationResult is the gate's verdict recorded at validation time.
type VerificationResult struct {
	Valid      bool   `json:"valid"`
	Confidence int    `json:"confidence"` // 0–100
	Reason     string `json:"reason"`
}

// ─── Task Creation ──────────────────────────────────────────────────────────

// CreateTaskInput carries the caller-supplied fields of a new task.
type CreateTaskInput struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Duration       int      `json:"duration"`
	CreditsOffered int64    `json:"credits_offered"`
	Type           TaskType `json:"task_type"`
	SkillsRequired []string `json:"skills_required"`
	Location       string   `json:"location"`
}

// Validate checks the creation bounds: duration 15–60 minutes, positive
// credits, non-empty title, known task type.
func (in CreateTaskInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrValidation
	}
	if in.Duration < MinDuration || in.Duration > MaxDuration {
		return ErrValidation
	}
	if in.CreditsOffered <= 0 {
		return ErrValidation
	}
	if in.Type != TypeOffer && in.Type != TypeRequest {
		return ErrValidation
	}
	return nil
}

// ─── Status Change ──────────────────────────────────────────────────────────

// StatusChange carries the fields written alongside a status transition.
// Assignee is consulted only on the transition into assigned; At stamps
// assigned_at or completed_at depending on the target status; Result is
// recorded on the transition into validated.
type StatusChange struct {
	Assignee string
	At       time.Time
	Result   *VerificationResult
}

// ─── Filtering ──────────────────────────────────────────────────────────────

// DefaultListLimit caps list results when the filter does not set one.
const DefaultListLimit = 100

// TaskFilter selects tasks for listing. Zero values mean "no constraint".
// Involving scopes to tasks where the user is owner or assignee.
type TaskFilter struct {
	Status    TaskStatus
	Type      TaskType
	Query     string // case-insensitive substring match on title
	Location  string // case-insensitive substring match on location
	Involving string
	Limit     int
}

// Matches reports whether the task satisfies every set predicate.
func (f TaskFilter) Matches(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Query)) {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(t.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.Involving != "" && t.CreatedBy != f.Involving && t.AssignedTo != f.Involving {
		return false
	}
	return true
}

// ─── User Types ─────────────────────────────────────────────────────────────

// User is a marketplace participant. Balance is in minutes and is mutated
// only by Ledger operations; it is never negative.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name,omitempty"`
	Picture      string    `json:"picture,omitempty"`
	Skills       []string  `json:"skills"`
	Location     string    `json:"location,omitempty"`
	Availability string    `json:"availability,omitempty"`
	Verified     bool      `json:"verified"`
	Balance      int64     `json:"time_credits"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProfileUpdate carries the mutable profile fields. Nil pointers leave the
// current value untouched. Balance is deliberately absent — only the Ledger
// moves credits.
type ProfileUpdate struct {
	Name         *string   `json:"name,omitempty"`
	Skills       *[]string `json:"skills,omitempty"`
	Location     *string   `json:"location,omitempty"`
	Availability *string   `json:"availability,omitempty"`
}
