package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Input errors
	ErrValidation = errors.New("invalid task fields")

	// Permission errors
	ErrForbidden = errors.New("actor not permitted for this transition")

	// Lifecycle errors
	ErrNotFound     = errors.New("task not found")
	ErrInvalidState = errors.New("transition not legal from current status")
	ErrBusy         = errors.New("task is locked by a concurrent operation")

	// Ledger errors
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient time credits")
	ErrInvalidAmount       = errors.New("transfer amount must be positive")
	ErrSameAccount         = errors.New("cannot transfer to the same account")
	ErrTransferFailed      = errors.New("credit transfer failed")

	// Verification errors
	ErrEvidenceMissing = errors.New("both before and after photos are required")
)
