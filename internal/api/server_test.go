package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/timebank-network/timebank/internal/app/lifecycle"
	"github.com/timebank-network/timebank/internal/domain"
	"github.com/timebank-network/timebank/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	engine := lifecycle.New(store, store, lifecycle.PhotoGate{})
	srv := httptest.NewServer(NewServer(engine, store, store).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

// call issues a JSON request with the actor header and decodes the body
// into out when non-nil.
func call(t *testing.T, srv *httptest.Server, method, path, actorID string, body, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set(actorHeader, actorID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func createTaskInput() domain.CreateTaskInput {
	return domain.CreateTaskInput{
		Title:          "Paint the shed",
		Description:    "One coat, paint provided",
		Duration:       60,
		CreditsOffered: 30,
		Type:           domain.TypeRequest,
		Location:       "Allotment 12",
	}
}

// ─── Flow Tests ─────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	if code := call(t, srv, http.MethodGet, "/health", "", nil, nil); code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", code)
	}
}

// TestFullExchange drives Scenario 1 end to end over HTTP:
// create → assign → evidence ×2 → validate → balances moved.
func TestFullExchange(t *testing.T) {
	srv, store := newTestServer(t)
	store.Grant("alice", 100)

	var task domain.Task
	if code := call(t, srv, http.MethodPost, "/api/tasks", "alice", createTaskInput(), &task); code != http.StatusCreated {
		t.Fatalf("create = %d, want 201", code)
	}

	if code := call(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/assign", "bob", nil, &task); code != http.StatusOK {
		t.Fatalf("assign = %d, want 200", code)
	}
	if task.Status != domain.StatusAssigned || task.AssignedTo != "bob" {
		t.Fatalf("after assign: %+v", task)
	}

	for _, ev := range []evidenceRequest{
		{Slot: domain.SlotBefore, PhotoRef: "data:ref-before"},
		{Slot: domain.SlotAfter, PhotoRef: "data:ref-after"},
	} {
		if code := call(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/evidence", "bob", ev, &task); code != http.StatusOK {
			t.Fatalf("evidence %s = %d, want 200", ev.Slot, code)
		}
	}

	if code := call(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/validate", "bob", nil, &task); code != http.StatusOK {
		t.Fatalf("validate = %d, want 200", code)
	}
	if task.Status != domain.StatusValidated {
		t.Errorf("Status = %s, want validated", task.Status)
	}

	var balance struct {
		TimeCredits int64 `json:"time_credits"`
	}
	call(t, srv, http.MethodGet, "/api/users/alice/balance", "", nil, &balance)
	if balance.TimeCredits != 70 {
		t.Errorf("alice balance = %d, want 70", balance.TimeCredits)
	}
	call(t, srv, http.MethodGet, "/api/users/bob/balance", "", nil, &balance)
	if balance.TimeCredits != 30 {
		t.Errorf("bob balance = %d, want 30", balance.TimeCredits)
	}

	var entries []domain.LedgerEntry
	call(t, srv, http.MethodGet, "/api/users/bob/ledger", "", nil, &entries)
	if len(entries) != 1 || entries[0].EntryType != domain.EntryCredit {
		t.Errorf("bob ledger = %+v, want one CREDIT row", entries)
	}
}

// ─── Error Mapping Tests ────────────────────────────────────────────────────

func TestErrorMapping(t *testing.T) {
	srv, store := newTestServer(t)
	store.Grant("alice", 5) // not enough for the 30-credit task

	var task domain.Task
	call(t, srv, http.MethodPost, "/api/tasks", "alice", createTaskInput(), &task)

	t.Run("create without actor is 401", func(t *testing.T) {
		if code := call(t, srv, http.MethodPost, "/api/tasks", "", createTaskInput(), nil); code != http.StatusUnauthorized {
			t.Errorf("code = %d, want 401", code)
		}
	})

	t.Run("invalid fields are 400", func(t *testing.T) {
		in := createTaskInput()
		in.Duration = 5
		if code := call(t, srv, http.MethodPost, "/api/tasks", "alice", in, nil); code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400", code)
		}
	})

	t.Run("assigning own task is 403", func(t *testing.T) {
		if code := call(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/assign", "alice", nil, nil); code != http.StatusForbidden {
			t.Errorf("code = %d, want 403", code)
		}
	})

	t.Run("missing task is 404", func(t *testing.T) {
		if code := call(t, srv, http.MethodPost, "/api/tasks/no-such/assign", "bob", nil, nil); code != http.StatusNotFound {
			t.Errorf("code = %d, want 404", code)
		}
	})

	// bob takes the task.
	call(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/assign", "bob", nil, nil)

	t.Run("lost assign race is 409", func(t *testing.T) {
		if code := call(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/assign", "carol", nil, nil); code != http.StatusConflict {
			t.Errorf("code = %d, want 409", code)
		}
	})

	t.Run("validate without evidence is 422", func(t *testing.T) {
		if code := call(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/validate", "bob", nil, nil); code != http.StatusUnprocessableEntity {
			t.Errorf("code = %d, want 422", code)
		}
	})

	for _, ev := range []evidenceRequest{
		{Slot: domain.SlotBefore, PhotoRef: "b"},
		{Slot: domain.SlotAfter, PhotoRef: "a"},
	} {
		call(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/evidence", "bob", ev, nil)
	}

	t.Run("failed transfer is 402", func(t *testing.T) {
		if code := call(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/validate", "bob", nil, nil); code != http.StatusPaymentRequired {
			t.Errorf("code = %d, want 402", code)
		}
	})
}

// ─── Listing Tests ──────────────────────────────────────────────────────────

func TestListTasks(t *testing.T) {
	srv, _ := newTestServer(t)

	in := createTaskInput()
	call(t, srv, http.MethodPost, "/api/tasks", "alice", in, nil)
	in.Title = "Window cleaning offer"
	in.Type = domain.TypeOffer
	call(t, srv, http.MethodPost, "/api/tasks", "bob", in, nil)

	var tasks []domain.Task
	call(t, srv, http.MethodGet, "/api/tasks", "", nil, &tasks)
	if len(tasks) != 2 {
		t.Fatalf("browse len = %d, want 2", len(tasks))
	}

	call(t, srv, http.MethodGet, "/api/tasks?task_type=offer", "", nil, &tasks)
	if len(tasks) != 1 || tasks[0].Type != domain.TypeOffer {
		t.Errorf("type filter = %+v", tasks)
	}

	call(t, srv, http.MethodGet, "/api/tasks?q=window", "", nil, &tasks)
	if len(tasks) != 1 {
		t.Errorf("title filter len = %d, want 1", len(tasks))
	}

	call(t, srv, http.MethodGet, "/api/tasks/my", "alice", nil, &tasks)
	if len(tasks) != 1 || tasks[0].CreatedBy != "alice" {
		t.Errorf("my tasks = %+v", tasks)
	}
}

func TestUpdateProfile(t *testing.T) {
	srv, store := newTestServer(t)
	store.Grant("alice", 60)

	name := "Alice"
	var user domain.User
	code := call(t, srv, http.MethodPut, "/api/users/profile", "alice", domain.ProfileUpdate{Name: &name}, &user)
	if code != http.StatusOK {
		t.Fatalf("update profile = %d, want 200", code)
	}
	if user.Name != "Alice" {
		t.Errorf("Name = %s, want Alice", user.Name)
	}
	if user.Balance != 60 {
		t.Errorf("Balance = %d, want 60", user.Balance)
	}

	t.Run("empty update is 400", func(t *testing.T) {
		if code := call(t, srv, http.MethodPut, "/api/users/profile", "alice", domain.ProfileUpdate{}, nil); code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400", code)
		}
	})
}
