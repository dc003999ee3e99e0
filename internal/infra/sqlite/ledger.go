package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/timebank-network/timebank/internal/domain"
)

// ─── Ledger Operations ──────────────────────────────────────────────────────

// Grant credits an account at provisioning time, creating the user row if
// missing.
func (db *DB) Grant(account string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR IGNORE INTO users (id) VALUES (?)`, account); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE users SET balance = balance + ? WHERE id = ?`, amount, account); err != nil {
		return err
	}

	var balance int64
	if err := tx.QueryRow(`SELECT balance FROM users WHERE id = ?`, account).Scan(&balance); err != nil {
		return err
	}
	if err := insertEntry(tx, domain.TxGrant, domain.EntryCredit, account, amount, "", balance); err != nil {
		return err
	}
	return tx.Commit()
}

// Transfer atomically moves credits between two accounts. The balance
// check, both updates and both journal rows commit in one transaction —
// no observer sees one side updated without the other.
func (db *DB) Transfer(from, to string, amount int64, taskID string) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if from == to {
		return domain.ErrSameAccount
	}

	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var fromBalance int64
	err = tx.QueryRow(`SELECT balance FROM users WHERE id = ?`, from).Scan(&fromBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return domain.ErrInsufficientBalance
	}

	if _, err := tx.Exec(`UPDATE users SET balance = balance - ? WHERE id = ?`, amount, from); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO users (id) VALUES (?)`, to); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE users SET balance = balance + ? WHERE id = ?`, amount, to); err != nil {
		return err
	}

	var toBalance int64
	if err := tx.QueryRow(`SELECT balance FROM users WHERE id = ?`, to).Scan(&toBalance); err != nil {
		return err
	}
	if err := insertEntry(tx, domain.TxExchange, domain.EntryDebit, from, amount, taskID, fromBalance-amount); err != nil {
		return err
	}
	if err := insertEntry(tx, domain.TxExchange, domain.EntryCredit, to, amount, taskID, toBalance); err != nil {
		return err
	}
	return tx.Commit()
}

// Balance returns the latest committed balance for the account.
func (db *DB) Balance(account string) (int64, error) {
	var balance int64
	err := db.db.QueryRow(`SELECT balance FROM users WHERE id = ?`, account).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	return balance, err
}

// Entries returns the account's journal rows, newest first.
func (db *DB) Entries(account string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	rows, err := db.db.Query(`
		SELECT id, tx_type, entry_type, account, amount, task_id, balance, created_at
		FROM ledger_entries WHERE account = ? ORDER BY id DESC LIMIT ?
	`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		var (
			e         domain.LedgerEntry
			txType    string
			entryType string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &txType, &entryType, &e.Account, &e.Amount, &e.TaskID, &e.Balance, &createdAt); err != nil {
			return nil, err
		}
		e.Type = domain.TransactionType(txType)
		e.EntryType = domain.EntryType(entryType)
		e.Timestamp = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEntry(tx *sql.Tx, txType domain.TransactionType, entryType domain.EntryType, account string, amount int64, taskID string, balance int64) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (tx_type, entry_type, account, amount, task_id, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(txType), string(entryType), account, amount, taskID, balance,
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// ─── UserStore Operations ───────────────────────────────────────────────────

// GetUser returns the user record including its current balance.
func (db *DB) GetUser(id string) (domain.User, error) {
	row := db.db.QueryRow(`
		SELECT id, email, name, picture, skills_json, location, availability, verified, balance, created_at
		FROM users WHERE id = ?
	`, id)

	var (
		u          domain.User
		skillsJSON string
		verified   int
		createdAt  string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &skillsJSON,
		&u.Location, &u.Availability, &verified, &u.Balance, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.Verified = verified == 1
	if err := json.Unmarshal([]byte(skillsJSON), &u.Skills); err != nil {
		u.Skills = nil
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// PutUser creates or replaces a profile, preserving any existing balance.
func (db *DB) PutUser(u domain.User) error {
	skills, err := json.Marshal(u.Skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	verified := 0
	if u.Verified {
		verified = 1
	}
	_, err = db.db.Exec(`
		INSERT INTO users (id, email, name, picture, skills_json, location, availability, verified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email        = excluded.email,
			name         = excluded.name,
			picture      = excluded.picture,
			skills_json  = excluded.skills_json,
			location     = excluded.location,
			availability = excluded.availability,
			verified     = excluded.verified
	`, u.ID, u.Email, u.Name, u.Picture, string(skills), u.Location, u.Availability, verified)
	return err
}

// UpdateProfile applies the set fields and returns the updated user.
func (db *DB) UpdateProfile(id string, p domain.ProfileUpdate) (domain.User, error) {
	u, err := db.GetUser(id)
	if err != nil {
		return domain.User{}, err
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Skills != nil {
		u.Skills = *p.Skills
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
	if p.Availability != nil {
		u.Availability = *p.Availability
	}
	if err := db.PutUser(u); err != nil {
		return domain.User{}, err
	}
	return db.GetUser(id)
}
