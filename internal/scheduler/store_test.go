package scheduler

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "tasks.json"))
}

func pendingTask(id string, triggerAt time.Time) Task {
	return Task{
		ID:          id,
		Description: "test task",
		TriggerAt:   triggerAt,
		Origin:      Origin{UserID: "U1", ChannelID: "C1"},
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	s := newTestStore(t)

	task := pendingTask("t1", time.Now().Add(time.Hour))
	if err := s.Create(task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Duplicate should error.
	if err := s.Create(task); err == nil {
		t.Fatal("expected error on duplicate Create")
	}

	got, ok := s.Get("t1")
	if !ok || got.Description != "test task" {
		t.Fatalf("Get: got %+v ok=%v", got, ok)
	}
}

func TestStore_Create_RejectsNonPending(t *testing.T) {
	s := newTestStore(t)
	task := pendingTask("t1", time.Now())
	task.Status = StatusRunning
	if err := s.Create(task); err == nil {
		t.Fatal("expected error creating non-pending task")
	}
}

func TestStore_PersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")

	s1 := NewStore(path)
	trigger := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := s1.Create(pendingTask("t1", trigger)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A fresh store on the same path sees the record: Create is durable
	// on return, no explicit save step.
	s2 := NewStore(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, ok := s2.Get("t1")
	if !ok {
		t.Fatal("task not found after reload")
	}
	if !got.TriggerAt.Equal(trigger) {
		t.Errorf("trigger time: got %v, want %v", got.TriggerAt, trigger)
	}
	if got.Origin.UserID != "U1" || got.Origin.ChannelID != "C1" {
		t.Errorf("origin not preserved: %+v", got.Origin)
	}
}

func TestStore_Load_MissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nonexistent.json"))
	if err := s.Load(); err != nil {
		t.Fatalf("Load on missing file should not error: %v", err)
	}
	if len(s.List(ListFilter{IncludeAll: true})) != 0 {
		t.Fatal("expected empty store")
	}
}

func TestStore_UpdateStatus(t *testing.T) {
	s := newTestStore(t)
	_ = s.Create(pendingTask("t1", time.Now()))

	if err := s.UpdateStatus("t1", StatusRunning, "", ""); err != nil {
		t.Fatalf("pending -> running: %v", err)
	}
	if err := s.UpdateStatus("t1", StatusCompleted, "all done", ""); err != nil {
		t.Fatalf("running -> completed: %v", err)
	}

	got, _ := s.Get("t1")
	if got.Status != StatusCompleted || got.Result != "all done" {
		t.Fatalf("got %+v", got)
	}
}

func TestStore_UpdateStatus_InvalidTransition(t *testing.T) {
	s := newTestStore(t)
	_ = s.Create(pendingTask("t1", time.Now()))
	_ = s.UpdateStatus("t1", StatusCancelled, "", "")

	// Terminal tasks are frozen.
	err := s.UpdateStatus("t1", StatusCompleted, "", "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	got, _ := s.Get("t1")
	if got.Status != StatusCancelled {
		t.Fatalf("status changed despite rejection: %s", got.Status)
	}
}

func TestStore_UpdateStatus_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateStatus("nope", StatusRunning, "", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_UpdateStatus_RecordsError(t *testing.T) {
	s := newTestStore(t)
	_ = s.Create(pendingTask("t1", time.Now()))
	_ = s.UpdateStatus("t1", StatusRunning, "", "")
	if err := s.UpdateStatus("t1", StatusFailed, "", "agent exploded"); err != nil {
		t.Fatalf("running -> failed: %v", err)
	}

	got, _ := s.Get("t1")
	if got.Status != StatusFailed || got.Error != "agent exploded" {
		t.Fatalf("got %+v", got)
	}
}

func TestStore_Delete_Idempotent(t *testing.T) {
	s := newTestStore(t)
	_ = s.Create(pendingTask("t1", time.Now()))

	if err := s.Delete("t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("t1"); err != nil {
		t.Fatalf("Delete of missing id should not error: %v", err)
	}
	if _, ok := s.Get("t1"); ok {
		t.Fatal("task still present after Delete")
	}
}

func TestStore_ListFilters(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	t1 := pendingTask("t1", now.Add(time.Hour))
	t2 := pendingTask("t2", now.Add(2*time.Hour))
	t2.Origin.UserID = "U2"
	t3 := pendingTask("t3", now.Add(3*time.Hour))
	_ = s.Create(t1)
	_ = s.Create(t2)
	_ = s.Create(t3)
	_ = s.UpdateStatus("t3", StatusCancelled, "", "")

	pending := s.List(ListFilter{})
	if len(pending) != 2 {
		t.Fatalf("pending: got %d tasks", len(pending))
	}

	mine := s.List(ListFilter{UserID: "U1"})
	if len(mine) != 1 || mine[0].ID != "t1" {
		t.Fatalf("user filter: got %v", mine)
	}

	all := s.List(ListFilter{UserID: "U1", IncludeAll: true})
	if len(all) != 2 {
		t.Fatalf("include all: got %d tasks", len(all))
	}
}

func TestStore_List_OrderedByTrigger(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	_ = s.Create(pendingTask("late", now.Add(2*time.Hour)))
	_ = s.Create(pendingTask("soon", now.Add(time.Hour)))

	got := s.List(ListFilter{})
	if len(got) != 2 || got[0].ID != "soon" || got[1].ID != "late" {
		t.Fatalf("order: got %v", got)
	}
}

func TestStore_ListDue(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	_ = s.Create(pendingTask("due", now.Add(-time.Minute)))
	_ = s.Create(pendingTask("future", now.Add(time.Hour)))
	_ = s.Create(pendingTask("cancelled", now.Add(-time.Minute)))
	_ = s.UpdateStatus("cancelled", StatusCancelled, "", "")

	due := s.ListDue(now)
	if len(due) != 1 || due[0].ID != "due" {
		t.Fatalf("ListDue: got %v", due)
	}
}
