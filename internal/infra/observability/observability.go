// Package observability holds the Prometheus metrics for the task
// lifecycle and the credit ledger. Metrics are package vars registered at
// init via promauto and exposed on /metrics by the API server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Lifecycle Metrics ──────────────────────────────────────────────────────

// TasksCreated counts created tasks by type.
var TasksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "lifecycle",
	Name:      "tasks_created_total",
	Help:      "Total tasks created, by task type.",
}, []string{"task_type"})

// TaskTransitions counts successful status transitions by target status.
var TaskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "lifecycle",
	Name:      "transitions_total",
	Help:      "Total successful status transitions, by target status.",
}, []string{"to"})

// AssignConflicts counts assign attempts that lost the race for an open task.
var AssignConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "lifecycle",
	Name:      "assign_conflicts_total",
	Help:      "Total assign attempts rejected because the task was no longer open.",
})

// EvidenceUploads counts evidence uploads by slot.
var EvidenceUploads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "lifecycle",
	Name:      "evidence_uploads_total",
	Help:      "Total evidence photo uploads, by slot.",
}, []string{"slot"})

// LockContention counts operations rejected with Busy on the task lock.
var LockContention = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "lifecycle",
	Name:      "lock_busy_total",
	Help:      "Total operations that failed fast on a contended task lock.",
})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// TransfersTotal counts completed credit transfers.
var TransfersTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "ledger",
	Name:      "transfers_total",
	Help:      "Total completed credit transfers.",
})

// TransferFailures counts transfers rejected by the ledger.
var TransferFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "ledger",
	Name:      "transfer_failures_total",
	Help:      "Total transfers rejected by the ledger at validation time.",
})

// CreditsTransferred counts total credits moved between accounts.
var CreditsTransferred = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "timebank",
	Subsystem: "ledger",
	Name:      "credits_transferred_total",
	Help:      "Total time credits (minutes) moved by validated exchanges.",
})
