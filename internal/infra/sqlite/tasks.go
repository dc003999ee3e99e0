package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timebank-network/timebank/internal/domain"
)

// ─── TaskStore Operations ───────────────────────────────────────────────────

const taskColumns = `id, title, description, duration, credits_offered, task_type,
	skills_json, location, created_by, assigned_to, status,
	before_photo, after_photo, validation_json, created_at, assigned_at, completed_at`

// InsertTask persists a new task.
func (db *DB) InsertTask(t domain.Task) error {
	skills, err := json.Marshal(t.SkillsRequired)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	_, err = db.db.Exec(`
		INSERT INTO tasks (id, title, description, duration, credits_offered, task_type,
			skills_json, location, created_by, status, before_photo, after_photo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, t.Description, t.Duration, t.CreditsOffered, string(t.Type),
		string(skills), t.Location, t.CreatedBy, string(t.Status),
		t.BeforePhoto, t.AfterPhoto, t.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// GetTask returns the task by id.
func (db *DB) GetTask(id string) (domain.Task, error) {
	row := db.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.ErrNotFound
	}
	return t, err
}

// ListTasks returns matching tasks newest first, capped at the filter limit.
func (db *DB) ListTasks(f domain.TaskFilter) ([]domain.Task, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		where = append(where, "task_type = ?")
		args = append(args, string(f.Type))
	}
	if f.Query != "" {
		where = append(where, "lower(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Query)+"%")
	}
	if f.Location != "" {
		where = append(where, "lower(location) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Location)+"%")
	}
	if f.Involving != "" {
		where = append(where, "(created_by = ? OR assigned_to = ?)")
		args = append(args, f.Involving, f.Involving)
	}

	q := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	q += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := db.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AttachEvidence sets one photo slot. The status and assignee guards run
// inside the UPDATE so a racing transition cannot slip an upload through.
func (db *DB) AttachEvidence(id string, slot domain.EvidenceSlot, photoRef, actor string) (domain.Task, error) {
	var column string
	switch slot {
	case domain.SlotBefore:
		column = "before_photo"
	case domain.SlotAfter:
		column = "after_photo"
	default:
		return domain.Task{}, domain.ErrValidation
	}

	res, err := db.db.Exec(`
		UPDATE tasks SET `+column+` = ?
		WHERE id = ? AND status = ? AND assigned_to = ?
	`, photoRef, id, string(domain.StatusAssigned), actor)
	if err != nil {
		return domain.Task{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Task{}, err
	}
	if n == 0 {
		return domain.Task{}, db.classifyMiss(id, domain.StatusAssigned, actor)
	}
	return db.GetTask(id)
}

// SetStatus performs the compare-and-set transition as a single UPDATE
// guarded on the expected current status; zero rows affected means the
// status changed since it was read and nothing is written.
func (db *DB) SetStatus(id string, from, to domain.TaskStatus, change domain.StatusChange) (domain.Task, error) {
	var (
		res sql.Result
		err error
	)
	switch to {
	case domain.StatusAssigned:
		res, err = db.db.Exec(`
			UPDATE tasks SET status = ?, assigned_to = ?, assigned_at = ?
			WHERE id = ? AND status = ?
		`, string(to), change.Assignee, change.At.UTC().Format(time.RFC3339Nano), id, string(from))
	case domain.StatusValidated:
		var verdict []byte
		if change.Result != nil {
			if verdict, err = json.Marshal(change.Result); err != nil {
				return domain.Task{}, fmt.Errorf("marshal verdict: %w", err)
			}
		}
		res, err = db.db.Exec(`
			UPDATE tasks SET status = ?, completed_at = ?, validation_json = ?
			WHERE id = ? AND status = ?
		`, string(to), change.At.UTC().Format(time.RFC3339Nano), nullableString(string(verdict)), id, string(from))
	default:
		res, err = db.db.Exec(`
			UPDATE tasks SET status = ? WHERE id = ? AND status = ?
		`, string(to), id, string(from))
	}
	if err != nil {
		return domain.Task{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Task{}, err
	}
	if n == 0 {
		if _, getErr := db.GetTask(id); getErr != nil {
			return domain.Task{}, getErr
		}
		return domain.Task{}, domain.ErrInvalidState
	}
	return db.GetTask(id)
}

// classifyMiss distinguishes not-found, wrong-status and wrong-actor after
// a guarded UPDATE touched zero rows.
func (db *DB) classifyMiss(id string, wantStatus domain.TaskStatus, actor string) error {
	t, err := db.GetTask(id)
	if err != nil {
		return err
	}
	if t.Status != wantStatus {
		return domain.ErrInvalidState
	}
	if t.AssignedTo != actor {
		return domain.ErrForbidden
	}
	return domain.ErrInvalidState
}

// ─── Scanning ───────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t           domain.Task
		taskType    string
		status      string
		skillsJSON  string
		assignedTo  sql.NullString
		verdictJSON sql.NullString
		createdAt   string
		assignedAt  sql.NullString
		completedAt sql.NullString
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Duration, &t.CreditsOffered,
		&taskType, &skillsJSON, &t.Location, &t.CreatedBy, &assignedTo, &status,
		&t.BeforePhoto, &t.AfterPhoto, &verdictJSON, &createdAt, &assignedAt, &completedAt)
	if err != nil {
		return domain.Task{}, err
	}

	t.Type = domain.TaskType(taskType)
	t.Status = domain.TaskStatus(status)
	t.AssignedTo = assignedTo.String
	if err := json.Unmarshal([]byte(skillsJSON), &t.SkillsRequired); err != nil {
		t.SkillsRequired = nil
	}
	if verdictJSON.Valid && verdictJSON.String != "" {
		var v domain.VerificationResult
		if err := json.Unmarshal([]byte(verdictJSON.String), &v); err == nil {
			t.Validation = &v
		}
	}
	t.CreatedAt = parseTime(createdAt)
	if assignedAt.Valid {
		at := parseTime(assignedAt.String)
		t.AssignedAt = &at
	}
	if completedAt.Valid {
		at := parseTime(completedAt.String)
		t.CompletedAt = &at
	}
	return t, nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
