package domain

import "time"

// ─── Credit Types ───────────────────────────────────────────────────────────
// These live in domain because they represent core business rules.
// Every completed exchange produces one DEBIT row and one CREDIT row; the
// sum of all balances never changes outside of provisioning grants.

// EntryType represents the accounting side of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TransactionType represents the business reason for a credit operation.
type TransactionType string

const (
	TxGrant    TransactionType = "GRANT"    // provisioning only
	TxExchange TransactionType = "EXCHANGE" // validated task completion
)

// LedgerEntry is a single row in the double-entry credit ledger.
// Balance is the account balance after this entry was applied.
type LedgerEntry struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      TransactionType `json:"type"`
	EntryType EntryType       `json:"entry_type"`
	Account   string          `json:"account"`
	Amount    int64           `json:"amount"`
	TaskID    string          `json:"task_id,omitempty"`
	Balance   int64           `json:"balance"`
}
