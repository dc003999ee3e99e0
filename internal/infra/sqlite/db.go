// Package sqlite provides the durable storage engine: task records, user
// profiles and the double-entry credit ledger in a single SQLite file.
// It implements the domain TaskStore, Ledger and UserStore interfaces.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	handle, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer connection; SQLite serializes writes anyway and this
	// avoids SQLITE_BUSY under concurrent transactions.
	handle.SetMaxOpenConns(1)

	db := &DB{db: handle}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error { return db.db.Close() }

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Users: profile plus the credit balance column. The CHECK mirrors
		// the domain invariant that no operation leaves a balance negative.
		`CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			email        TEXT NOT NULL DEFAULT '',
			name         TEXT NOT NULL DEFAULT '',
			picture      TEXT NOT NULL DEFAULT '',
			skills_json  TEXT NOT NULL DEFAULT '[]',
			location     TEXT NOT NULL DEFAULT '',
			availability TEXT NOT NULL DEFAULT '',
			verified     INTEGER NOT NULL DEFAULT 0,
			balance      INTEGER NOT NULL DEFAULT 0 CHECK(balance >= 0),
			created_at   TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Tasks: lifecycle state, evidence references, recorded verdict.
		`CREATE TABLE IF NOT EXISTS tasks (
			id              TEXT PRIMARY KEY,
			title           TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			duration        INTEGER NOT NULL,
			credits_offered INTEGER NOT NULL,
			task_type       TEXT NOT NULL,
			skills_json     TEXT NOT NULL DEFAULT '[]',
			location        TEXT NOT NULL DEFAULT '',
			created_by      TEXT NOT NULL,
			assigned_to     TEXT,
			status          TEXT NOT NULL DEFAULT 'open',
			before_photo    TEXT NOT NULL DEFAULT '',
			after_photo     TEXT NOT NULL DEFAULT '',
			validation_json TEXT,
			created_at      TEXT NOT NULL,
			assigned_at     TEXT,
			completed_at    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(created_by)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assigned_to)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at DESC)`,

		// Double-entry credit journal.
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			tx_type    TEXT NOT NULL,
			entry_type TEXT NOT NULL,
			account    TEXT NOT NULL,
			amount     INTEGER NOT NULL,
			task_id    TEXT NOT NULL DEFAULT '',
			balance    INTEGER NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(account, id DESC)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
