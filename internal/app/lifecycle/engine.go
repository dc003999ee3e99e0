// Package lifecycle implements the task state machine: the component that
// coordinates task store transitions with ledger transfers.
//
// The engine:
//  1. Serializes assign/validate/cancel per task id (striped try-locks)
//  2. Re-reads status inside the critical section before transitioning
//  3. Couples the validated transition with the credit transfer so the
//     pair commits together or not at all
//  4. Surfaces every failed transition to the caller unchanged
package lifecycle

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/timebank-network/timebank/internal/domain"
	"github.com/timebank-network/timebank/internal/infra/observability"
)

// lockStripes is the size of the per-task lock table. Tasks hash onto
// stripes, so operations on different task ids almost always proceed
// independently; a stripe collision only serializes, never deadlocks.
const lockStripes = 256

// Engine is the task lifecycle state machine.
type Engine struct {
	tasks  domain.TaskStore
	ledger domain.Ledger
	gate   Gate
	locks  [lockStripes]sync.Mutex
	now    func() time.Time
}

// New creates a lifecycle engine over the given stores and gate.
func New(tasks domain.TaskStore, ledger domain.Ledger, gate Gate) *Engine {
	return &Engine{
		tasks:  tasks,
		ledger: ledger,
		gate:   gate,
		now:    time.Now,
	}
}

// ─── Creation & Queries ─────────────────────────────────────────────────────

// Create validates the input and persists a new open task owned by the
// actor. No credits are reserved at creation; the transfer is checked
// lazily at validation time.
func (e *Engine) Create(ownerID string, in domain.CreateTaskInput) (domain.Task, error) {
	if err := in.Validate(); err != nil {
		return domain.Task{}, err
	}

	t := domain.Task{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Description:    in.Description,
		Duration:       in.Duration,
		CreditsOffered: in.CreditsOffered,
		Type:           in.Type,
		SkillsRequired: in.SkillsRequired,
		Location:       in.Location,
		CreatedBy:      ownerID,
		Status:         domain.StatusOpen,
		CreatedAt:      e.now(),
	}
	if err := e.tasks.InsertTask(t); err != nil {
		return domain.Task{}, fmt.Errorf("persist task: %w", err)
	}

	observability.TasksCreated.WithLabelValues(string(t.Type)).Inc()
	return t, nil
}

// Get returns a task by id.
func (e *Engine) Get(taskID string) (domain.Task, error) {
	return e.tasks.GetTask(taskID)
}

// List is the read-only query layer: it composes predicates over the task
// store and never mutates. Listings may be momentarily stale relative to
// in-flight transitions; task status and ledger state are not.
func (e *Engine) List(f domain.TaskFilter) ([]domain.Task, error) {
	return e.tasks.ListTasks(f)
}

// ListFor returns every task where the user is owner or assignee.
func (e *Engine) ListFor(userID string) ([]domain.Task, error) {
	return e.tasks.ListTasks(domain.TaskFilter{Involving: userID})
}

// ─── Transitions ────────────────────────────────────────────────────────────

// Assign moves an open task to assigned with the actor as assignee.
// Under concurrent calls exactly one actor wins; the rest observe
// ErrInvalidState because the task is no longer open.
func (e *Engine) Assign(taskID, actorID string) (domain.Task, error) {
	unlock, err := e.lock(taskID)
	if err != nil {
		return domain.Task{}, err
	}
	defer unlock()

	t, err := e.tasks.GetTask(taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status != domain.StatusOpen {
		observability.AssignConflicts.Inc()
		return domain.Task{}, domain.ErrInvalidState
	}
	if t.CreatedBy == actorID {
		return domain.Task{}, domain.ErrForbidden
	}

	t, err = e.tasks.SetStatus(taskID, domain.StatusOpen, domain.StatusAssigned, domain.StatusChange{
		Assignee: actorID,
		At:       e.now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			observability.AssignConflicts.Inc()
		}
		return domain.Task{}, err
	}

	observability.TaskTransitions.WithLabelValues(string(domain.StatusAssigned)).Inc()
	return t, nil
}

// SubmitEvidence populates one evidence slot. No state transition occurs;
// re-uploading a slot overwrites the prior reference.
func (e *Engine) SubmitEvidence(taskID, actorID string, slot domain.EvidenceSlot, photoRef string) (domain.Task, error) {
	if photoRef == "" {
		return domain.Task{}, domain.ErrValidation
	}
	t, err := e.tasks.AttachEvidence(taskID, slot, photoRef, actorID)
	if err != nil {
		return domain.Task{}, err
	}
	observability.EvidenceUploads.WithLabelValues(string(slot)).Inc()
	return t, nil
}

// Validate finalizes an assigned task: the gate must accept the evidence,
// then the credit transfer and the status change commit as one unit. A
// failed transfer leaves the task assigned and both balances untouched.
func (e *Engine) Validate(taskID, actorID string) (domain.Task, error) {
	unlock, err := e.lock(taskID)
	if err != nil {
		return domain.Task{}, err
	}
	defer unlock()

	t, err := e.tasks.GetTask(taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status != domain.StatusAssigned {
		return domain.Task{}, domain.ErrInvalidState
	}
	if t.AssignedTo != actorID {
		return domain.Task{}, domain.ErrForbidden
	}

	result := e.gate.Evaluate(t)
	if !result.Valid {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrEvidenceMissing, result.Reason)
	}

	// Transfer before the status flip: a rejected transfer must leave the
	// task assigned (never a validated task that was not paid for).
	if err := e.ledger.Transfer(t.CreatedBy, t.AssignedTo, t.CreditsOffered, t.ID); err != nil {
		observability.TransferFailures.Inc()
		return domain.Task{}, errors.Join(domain.ErrTransferFailed, err)
	}

	updated, err := e.tasks.SetStatus(taskID, domain.StatusAssigned, domain.StatusValidated, domain.StatusChange{
		At:     e.now(),
		Result: &result,
	})
	if err != nil {
		// The task lock makes a lost CAS unreachable through this engine.
		// If the store was mutated out-of-band, reverse the transfer so no
		// half of the exchange survives.
		if rbErr := e.ledger.Transfer(t.AssignedTo, t.CreatedBy, t.CreditsOffered, taskID); rbErr != nil {
			return domain.Task{}, fmt.Errorf("reverse transfer after lost transition: %w", rbErr)
		}
		return domain.Task{}, domain.ErrInvalidState
	}

	observability.TaskTransitions.WithLabelValues(string(domain.StatusValidated)).Inc()
	observability.TransfersTotal.Inc()
	observability.CreditsTransferred.Add(float64(updated.CreditsOffered))
	return updated, nil
}

// Cancel moves an open task to cancelled. Owner only; no ledger effect
// because nothing is escrowed at creation.
func (e *Engine) Cancel(taskID, actorID string) (domain.Task, error) {
	unlock, err := e.lock(taskID)
	if err != nil {
		return domain.Task{}, err
	}
	defer unlock()

	t, err := e.tasks.GetTask(taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status != domain.StatusOpen {
		return domain.Task{}, domain.ErrInvalidState
	}
	if t.CreatedBy != actorID {
		return domain.Task{}, domain.ErrForbidden
	}

	t, err = e.tasks.SetStatus(taskID, domain.StatusOpen, domain.StatusCancelled, domain.StatusChange{})
	if err != nil {
		return domain.Task{}, err
	}

	observability.TaskTransitions.WithLabelValues(string(domain.StatusCancelled)).Inc()
	return t, nil
}

// ─── Locking ────────────────────────────────────────────────────────────────

// lock acquires the stripe lock for a task id without blocking. Callers
// receiving ErrBusy may safely retry; everything else in the error
// taxonomy requires a new decision.
func (e *Engine) lock(taskID string) (func(), error) {
	m := &e.locks[stripe(taskID)]
	if !m.TryLock() {
		observability.LockContention.Inc()
		return nil, domain.ErrBusy
	}
	return m.Unlock, nil
}

func stripe(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32() % lockStripes
}
