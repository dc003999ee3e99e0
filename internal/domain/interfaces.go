package domain

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// TaskStore owns task records and their lifecycle state. SetStatus is the
// only mutator of Status, and only the lifecycle engine calls it.
type TaskStore interface {
	// InsertTask persists a freshly created task (status must be open).
	InsertTask(t Task) error

	// GetTask returns the task by id, or ErrNotFound.
	GetTask(id string) (Task, error)

	// ListTasks returns tasks matching the filter, newest first, capped at
	// the filter limit (DefaultListLimit when unset). Ordering is stable
	// for a given store snapshot only.
	ListTasks(f TaskFilter) ([]Task, error)

	// AttachEvidence sets one photo slot. Permitted only while the task is
	// assigned and the actor is the current assignee; re-uploading a slot
	// overwrites the prior reference.
	AttachEvidence(id string, slot EvidenceSlot, photoRef, actor string) (Task, error)

	// SetStatus transitions the task from exactly `from` to `to`,
	// compare-and-set style: if the current status is not `from` the call
	// fails with ErrInvalidState and nothing is written.
	SetStatus(id string, from, to TaskStatus, change StatusChange) (Task, error)
}

// Ledger owns every user's time-credit balance.
type Ledger interface {
	// Grant is a one-way credit used only at account provisioning. It
	// creates the account if missing.
	Grant(account string, amount int64) error

	// Transfer atomically moves amount from one account to the other.
	// Fails with ErrInsufficientBalance, ErrInvalidAmount or
	// ErrSameAccount; no intermediate state is ever observable.
	Transfer(from, to string, amount int64, taskID string) error

	// Balance returns the latest committed balance for the account.
	Balance(account string) (int64, error)

	// Entries returns the most recent journal rows for the account,
	// newest first.
	Entries(account string, limit int) ([]LedgerEntry, error)
}

// UserStore owns profile records. Balances are read through the Ledger.
type UserStore interface {
	GetUser(id string) (User, error)
	PutUser(u User) error
	UpdateProfile(id string, p ProfileUpdate) (User, error)
}
