// Package memory provides the in-memory storage engine. It implements the
// domain TaskStore, Ledger and UserStore interfaces and is the reference
// for the concurrency rules: compare-and-set status transitions and
// per-account ledger locks acquired in a fixed order.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/timebank-network/timebank/internal/domain"
)

// account pairs a user record with its own lock so transfers between
// disjoint account pairs proceed independently.
type account struct {
	mu   sync.Mutex
	user domain.User
}

// Store is an in-memory task store, ledger and user store.
type Store struct {
	mu       sync.RWMutex // guards the maps, task records and the journal
	tasks    map[string]domain.Task
	accounts map[string]*account
	journal  []domain.LedgerEntry
	nextID   int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tasks:    make(map[string]domain.Task),
		accounts: make(map[string]*account),
	}
}

// ─── TaskStore ──────────────────────────────────────────────────────────────

// InsertTask persists a new task.
func (s *Store) InsertTask(t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

// GetTask returns the task by id.
func (s *Store) GetTask(id string) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	return cloneTask(t), nil
}

// ListTasks returns matching tasks newest first.
func (s *Store) ListTasks(f domain.TaskFilter) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Task, 0)
	for _, t := range s.tasks {
		if f.Matches(t) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	limit := f.Limit
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AttachEvidence sets one photo slot on an assigned task. Re-uploading a
// slot overwrites the prior reference.
func (s *Store) AttachEvidence(id string, slot domain.EvidenceSlot, photoRef, actor string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	if t.Status != domain.StatusAssigned {
		return domain.Task{}, domain.ErrInvalidState
	}
	if t.AssignedTo != actor {
		return domain.Task{}, domain.ErrForbidden
	}

	switch slot {
	case domain.SlotBefore:
		t.BeforePhoto = photoRef
	case domain.SlotAfter:
		t.AfterPhoto = photoRef
	default:
		return domain.Task{}, domain.ErrValidation
	}

	s.tasks[id] = t
	return cloneTask(t), nil
}

// SetStatus performs a compare-and-set transition. If the current status
// differs from `from` the call fails with ErrInvalidState and nothing is
// written.
func (s *Store) SetStatus(id string, from, to domain.TaskStatus, change domain.StatusChange) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	if t.Status != from {
		return domain.Task{}, domain.ErrInvalidState
	}

	t.Status = to
	switch to {
	case domain.StatusAssigned:
		t.AssignedTo = change.Assignee
		at := change.At
		t.AssignedAt = &at
	case domain.StatusValidated:
		at := change.At
		t.CompletedAt = &at
		t.Validation = change.Result
	}

	s.tasks[id] = t
	return cloneTask(t), nil
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// Grant credits an account at provisioning time, creating it if missing.
func (s *Store) Grant(acct string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	a := s.getOrCreateAccount(acct)
	a.mu.Lock()
	a.user.Balance += amount
	balance := a.user.Balance
	a.mu.Unlock()

	s.appendEntry(domain.LedgerEntry{
		Type:      domain.TxGrant,
		EntryType: domain.EntryCredit,
		Account:   acct,
		Amount:    amount,
		Balance:   balance,
	})
	return nil
}

// Transfer atomically moves credits between two accounts. Both account
// locks are taken in id order so opposing concurrent transfers between the
// same pair cannot deadlock.
func (s *Store) Transfer(from, to string, amount int64, taskID string) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if from == to {
		return domain.ErrSameAccount
	}

	s.mu.RLock()
	src, ok := s.accounts[from]
	s.mu.RUnlock()
	if !ok {
		return domain.ErrAccountNotFound
	}
	dst := s.getOrCreateAccount(to)

	// Fixed acquisition order by account id.
	first, second := src, dst
	if from > to {
		first, second = dst, src
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if src.user.Balance < amount {
		return domain.ErrInsufficientBalance
	}
	src.user.Balance -= amount
	dst.user.Balance += amount

	s.appendEntry(domain.LedgerEntry{
		Type:      domain.TxExchange,
		EntryType: domain.EntryDebit,
		Account:   from,
		Amount:    amount,
		TaskID:    taskID,
		Balance:   src.user.Balance,
	})
	s.appendEntry(domain.LedgerEntry{
		Type:      domain.TxExchange,
		EntryType: domain.EntryCredit,
		Account:   to,
		Amount:    amount,
		TaskID:    taskID,
		Balance:   dst.user.Balance,
	})
	return nil
}

// Balance returns the latest committed balance.
func (s *Store) Balance(acct string) (int64, error) {
	s.mu.RLock()
	a, ok := s.accounts[acct]
	s.mu.RUnlock()
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.Balance, nil
}

// Entries returns the account's journal rows, newest first.
func (s *Store) Entries(acct string, limit int) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	out := make([]domain.LedgerEntry, 0)
	for i := len(s.journal) - 1; i >= 0 && len(out) < limit; i-- {
		if s.journal[i].Account == acct {
			out = append(out, s.journal[i])
		}
	}
	return out, nil
}

// ─── UserStore ──────────────────────────────────────────────────────────────

// GetUser returns the user record including its current balance.
func (s *Store) GetUser(id string) (domain.User, error) {
	s.mu.RLock()
	a, ok := s.accounts[id]
	s.mu.RUnlock()
	if !ok {
		return domain.User{}, domain.ErrAccountNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneUser(a.user), nil
}

// PutUser creates or replaces a profile, preserving any existing balance.
func (s *Store) PutUser(u domain.User) error {
	a := s.getOrCreateAccount(u.ID)
	a.mu.Lock()
	defer a.mu.Unlock()
	balance := a.user.Balance
	a.user = cloneUser(u)
	a.user.Balance = balance
	return nil
}

// UpdateProfile applies the set fields and returns the updated user.
func (s *Store) UpdateProfile(id string, p domain.ProfileUpdate) (domain.User, error) {
	s.mu.RLock()
	a, ok := s.accounts[id]
	s.mu.RUnlock()
	if !ok {
		return domain.User{}, domain.ErrAccountNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if p.Name != nil {
		a.user.Name = *p.Name
	}
	if p.Skills != nil {
		a.user.Skills = append([]string(nil), (*p.Skills)...)
	}
	if p.Location != nil {
		a.user.Location = *p.Location
	}
	if p.Availability != nil {
		a.user.Availability = *p.Availability
	}
	return cloneUser(a.user), nil
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (s *Store) getOrCreateAccount(id string) *account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		a = &account{user: domain.User{ID: id, CreatedAt: time.Now()}}
		s.accounts[id] = a
	}
	return a
}

func (s *Store) appendEntry(e domain.LedgerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	e.Timestamp = time.Now()
	s.journal = append(s.journal, e)
}

func cloneTask(t domain.Task) domain.Task {
	out := t
	out.SkillsRequired = append([]string(nil), t.SkillsRequired...)
	if t.AssignedAt != nil {
		at := *t.AssignedAt
		out.AssignedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		out.CompletedAt = &at
	}
	if t.Validation != nil {
		v := *t.Validation
		out.Validation = &v
	}
	return out
}

func cloneUser(u domain.User) domain.User {
	out := u
	out.Skills = append([]string(nil), u.Skills...)
	return out
}
