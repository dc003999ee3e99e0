package sqlite

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/timebank-network/timebank/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "timebank.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTask(id, owner string, created time.Time) domain.Task {
	return domain.Task{
		ID:             id,
		Title:          "Fix the fence gate",
		Description:    "Hinge needs replacing",
		Duration:       45,
		CreditsOffered: 45,
		Type:           domain.TypeRequest,
		SkillsRequired: []string{"carpentry"},
		Location:       "Oak Lane",
		CreatedBy:      owner,
		Status:         domain.StatusOpen,
		CreatedAt:      created,
	}
}

// ─── Task Tests ─────────────────────────────────────────────────────────────

func TestInsertAndGetTask(t *testing.T) {
	db := newTestDB(t)
	task := newTask("t1", "alice", time.Now())
	if err := db.InsertTask(task); err != nil {
		t.Fatalf("InsertTask() error: %v", err)
	}

	got, err := db.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask() error: %v", err)
	}
	if got.Title != task.Title {
		t.Errorf("Title = %q, want %q", got.Title, task.Title)
	}
	if got.Status != domain.StatusOpen {
		t.Errorf("Status = %s, want open", got.Status)
	}
	if len(got.SkillsRequired) != 1 || got.SkillsRequired[0] != "carpentry" {
		t.Errorf("SkillsRequired = %v", got.SkillsRequired)
	}
	if got.AssignedTo != "" || got.AssignedAt != nil || got.CompletedAt != nil {
		t.Errorf("fresh task carries assignment fields: %+v", got)
	}

	if _, err := db.GetTask("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetTask(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListTasks_Filters(t *testing.T) {
	db := newTestDB(t)
	base := time.Now()

	a := newTask("t1", "alice", base)
	a.Title = "Grocery run"
	a.Location = "Maple Street"
	db.InsertTask(a)

	b := newTask("t2", "bob", base.Add(time.Minute))
	b.Title = "Dog walking"
	b.Type = domain.TypeOffer
	db.InsertTask(b)

	tests := []struct {
		name   string
		filter domain.TaskFilter
		want   []string
	}{
		{"all open newest first", domain.TaskFilter{Status: domain.StatusOpen}, []string{"t2", "t1"}},
		{"by type", domain.TaskFilter{Type: domain.TypeOffer}, []string{"t2"}},
		{"title substring", domain.TaskFilter{Query: "grocery"}, []string{"t1"}},
		{"location substring", domain.TaskFilter{Location: "maple"}, []string{"t1"}},
		{"involving owner", domain.TaskFilter{Involving: "bob"}, []string{"t2"}},
		{"no match", domain.TaskFilter{Query: "plumbing"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := db.ListTasks(tt.filter)
			if err != nil {
				t.Fatalf("ListTasks() error: %v", err)
			}
			if len(tasks) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(tasks), len(tt.want))
			}
			for i, id := range tt.want {
				if tasks[i].ID != id {
					t.Errorf("tasks[%d].ID = %s, want %s", i, tasks[i].ID, id)
				}
			}
		})
	}
}

func TestListTasks_Limit(t *testing.T) {
	db := newTestDB(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		db.InsertTask(newTask(fmt.Sprintf("t%d", i), "alice", base.Add(time.Duration(i)*time.Second)))
	}
	tasks, err := db.ListTasks(domain.TaskFilter{Limit: 3})
	if err != nil {
		t.Fatalf("ListTasks() error: %v", err)
	}
	if len(tasks) != 3 {
		t.Errorf("len = %d, want 3", len(tasks))
	}
}

func TestSetStatus_CAS(t *testing.T) {
	db := newTestDB(t)
	db.InsertTask(newTask("t1", "alice", time.Now()))

	got, err := db.SetStatus("t1", domain.StatusOpen, domain.StatusAssigned, domain.StatusChange{
		Assignee: "bob",
		At:       time.Now(),
	})
	if err != nil {
		t.Fatalf("SetStatus() error: %v", err)
	}
	if got.Status != domain.StatusAssigned || got.AssignedTo != "bob" || got.AssignedAt == nil {
		t.Errorf("after assign: %+v", got)
	}

	// The guarded UPDATE touches zero rows when the expectation is stale.
	if _, err := db.SetStatus("t1", domain.StatusOpen, domain.StatusCancelled, domain.StatusChange{}); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("stale CAS error = %v, want ErrInvalidState", err)
	}
	if _, err := db.SetStatus("missing", domain.StatusOpen, domain.StatusAssigned, domain.StatusChange{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing CAS error = %v, want ErrNotFound", err)
	}
}

func TestSetStatus_ValidatedRecordsVerdict(t *testing.T) {
	db := newTestDB(t)
	db.InsertTask(newTask("t1", "alice", time.Now()))
	db.SetStatus("t1", domain.StatusOpen, domain.StatusAssigned, domain.StatusChange{Assignee: "bob", At: time.Now()})

	verdict := &domain.VerificationResult{Valid: true, Confidence: 95, Reason: "both evidence photos present"}
	got, err := db.SetStatus("t1", domain.StatusAssigned, domain.StatusValidated, domain.StatusChange{
		At:     time.Now(),
		Result: verdict,
	})
	if err != nil {
		t.Fatalf("SetStatus() error: %v", err)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}
	if got.Validation == nil || got.Validation.Confidence != 95 {
		t.Errorf("Validation = %+v, want recorded verdict", got.Validation)
	}
}

func TestAttachEvidence(t *testing.T) {
	db := newTestDB(t)
	db.InsertTask(newTask("t1", "alice", time.Now()))

	// Not assigned yet.
	if _, err := db.AttachEvidence("t1", domain.SlotBefore, "p", "bob"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("open task error = %v, want ErrInvalidState", err)
	}

	db.SetStatus("t1", domain.StatusOpen, domain.StatusAssigned, domain.StatusChange{Assignee: "bob", At: time.Now()})

	got, err := db.AttachEvidence("t1", domain.SlotBefore, "photo-b", "bob")
	if err != nil {
		t.Fatalf("AttachEvidence() error: %v", err)
	}
	if got.BeforePhoto != "photo-b" {
		t.Errorf("BeforePhoto = %s, want photo-b", got.BeforePhoto)
	}

	// Overwrite is permitted.
	got, err = db.AttachEvidence("t1", domain.SlotBefore, "photo-b2", "bob")
	if err != nil {
		t.Fatalf("re-upload error: %v", err)
	}
	if got.BeforePhoto != "photo-b2" {
		t.Errorf("BeforePhoto = %s, want photo-b2", got.BeforePhoto)
	}

	if _, err := db.AttachEvidence("t1", domain.SlotBefore, "p", "carol"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("wrong actor error = %v, want ErrForbidden", err)
	}
	if _, err := db.AttachEvidence("missing", domain.SlotBefore, "p", "bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing task error = %v, want ErrNotFound", err)
	}
}

// ─── Ledger Tests ───────────────────────────────────────────────────────────

func TestGrantAndBalance(t *testing.T) {
	db := newTestDB(t)
	if err := db.Grant("alice", 60); err != nil {
		t.Fatalf("Grant() error: %v", err)
	}
	if err := db.Grant("alice", 40); err != nil {
		t.Fatalf("second Grant() error: %v", err)
	}
	balance, err := db.Balance("alice")
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if balance != 100 {
		t.Errorf("Balance = %d, want 100", balance)
	}

	if _, err := db.Balance("ghost"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Balance(ghost) error = %v, want ErrAccountNotFound", err)
	}
}

func TestTransfer(t *testing.T) {
	db := newTestDB(t)
	db.Grant("alice", 100)

	if err := db.Transfer("alice", "bob", 30, "t1"); err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}
	alice, _ := db.Balance("alice")
	bob, _ := db.Balance("bob")
	if alice != 70 || bob != 30 {
		t.Errorf("balances = %d/%d, want 70/30", alice, bob)
	}
}

func TestTransfer_InsufficientRollsBack(t *testing.T) {
	db := newTestDB(t)
	db.Grant("alice", 10)
	db.Grant("bob", 5)

	err := db.Transfer("alice", "bob", 30, "t1")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("Transfer() error = %v, want ErrInsufficientBalance", err)
	}

	alice, _ := db.Balance("alice")
	bob, _ := db.Balance("bob")
	if alice != 10 || bob != 5 {
		t.Errorf("balances = %d/%d, want 10/5 (unchanged)", alice, bob)
	}

	// No journal rows for the failed transfer.
	entries, _ := db.Entries("alice", 0)
	for _, e := range entries {
		if e.Type == domain.TxExchange {
			t.Errorf("failed transfer left journal row: %+v", e)
		}
	}
}

func TestTransfer_Errors(t *testing.T) {
	db := newTestDB(t)
	db.Grant("alice", 50)

	if err := db.Transfer("alice", "alice", 5, "t1"); !errors.Is(err, domain.ErrSameAccount) {
		t.Errorf("same account error = %v, want ErrSameAccount", err)
	}
	if err := db.Transfer("alice", "bob", 0, "t1"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero amount error = %v, want ErrInvalidAmount", err)
	}
	if err := db.Transfer("ghost", "bob", 5, "t1"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("unknown source error = %v, want ErrAccountNotFound", err)
	}
}

func TestEntries(t *testing.T) {
	db := newTestDB(t)
	db.Grant("alice", 100)
	db.Transfer("alice", "bob", 30, "t1")

	entries, err := db.Entries("alice", 0)
	if err != nil {
		t.Fatalf("Entries() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2 (grant + debit)", len(entries))
	}
	if entries[0].EntryType != domain.EntryDebit || entries[0].Balance != 70 {
		t.Errorf("entries[0] = %+v, want DEBIT with balance 70", entries[0])
	}
	if entries[1].Type != domain.TxGrant {
		t.Errorf("entries[1].Type = %s, want GRANT", entries[1].Type)
	}
}

// ─── User Tests ─────────────────────────────────────────────────────────────

func TestPutAndGetUser(t *testing.T) {
	db := newTestDB(t)
	db.Grant("alice", 60)

	err := db.PutUser(domain.User{
		ID:     "alice",
		Name:   "Alice",
		Email:  "alice@example.org",
		Skills: []string{"gardening", "cooking"},
	})
	if err != nil {
		t.Fatalf("PutUser() error: %v", err)
	}

	u, err := db.GetUser("alice")
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if u.Name != "Alice" || len(u.Skills) != 2 {
		t.Errorf("GetUser() = %+v", u)
	}
	if u.Balance != 60 {
		t.Errorf("Balance = %d, want 60 (profile upsert preserves credits)", u.Balance)
	}
}

func TestUpdateProfile(t *testing.T) {
	db := newTestDB(t)
	db.Grant("alice", 60)

	availability := "weekends"
	skills := []string{"tutoring"}
	u, err := db.UpdateProfile("alice", domain.ProfileUpdate{
		Availability: &availability,
		Skills:       &skills,
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error: %v", err)
	}
	if u.Availability != "weekends" || len(u.Skills) != 1 {
		t.Errorf("UpdateProfile() = %+v", u)
	}

	name := "Ghost"
	if _, err := db.UpdateProfile("ghost", domain.ProfileUpdate{Name: &name}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("unknown user error = %v, want ErrAccountNotFound", err)
	}
}
