package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

var (
	// ErrNotFound is returned when no task exists with the given ID.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidTransition is returned when a status update would violate
	// the task state machine. Callers treat it as a consistency fault.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store provides durable, thread-safe persistence of scheduled tasks backed
// by a JSON file. Every mutation is written through to disk before the call
// returns, so a created task survives an immediate crash.
type Store struct {
	path  string
	tasks map[string]Task // keyed by Task.ID
	mu    sync.RWMutex
}

// NewStore creates a Store backed by the given file path.
// If the file does not exist it will be created on the first write.
func NewStore(path string) *Store {
	return &Store{
		path:  path,
		tasks: make(map[string]Task),
	}
}

// Load reads persisted tasks from disk. It is safe to call on a missing file.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // first run, nothing to load
		}
		return fmt.Errorf("read task store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var tasks []Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("unmarshal task store: %w", err)
	}

	s.tasks = make(map[string]Task, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return nil
}

// Create persists a new pending task. It fails on a duplicate ID or a task
// that is not pending.
func (s *Store) Create(task Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if task.Status != StatusPending {
		return fmt.Errorf("new task %s must be pending, got %s", task.ID, task.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task already exists: %s", task.ID)
	}
	s.tasks[task.ID] = task
	return s.persistLocked()
}

// Get returns a task by ID.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// ListFilter narrows List results. Zero value means "all pending".
type ListFilter struct {
	// UserID restricts to tasks created by the given origin user.
	UserID string
	// IncludeAll includes terminal and running tasks, not just pending.
	IncludeAll bool
}

// List returns matching tasks ordered by trigger time.
func (s *Store) List(f ListFilter) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.UserID != "" && t.Origin.UserID != f.UserID {
			continue
		}
		if !f.IncludeAll && t.Status != StatusPending {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerAt.Before(out[j].TriggerAt) })
	return out
}

// ListDue returns pending tasks whose trigger time is at or before now.
func (s *Store) ListDue(now time.Time) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []Task
	for _, t := range s.tasks {
		if t.Status == StatusPending && !t.TriggerAt.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].TriggerAt.Before(due[j].TriggerAt) })
	return due
}

// UpdateStatus atomically applies a status transition, recording result or
// error text for terminal outcomes. Transitions not permitted by the state
// machine return ErrInvalidTransition and leave the record unchanged.
func (s *Store) UpdateStatus(id string, to Status, result, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !t.Status.CanTransition(to) {
		return fmt.Errorf("%w: task %s %s -> %s", ErrInvalidTransition, id, t.Status, to)
	}

	t.Status = to
	if result != "" {
		t.Result = result
	}
	if errText != "" {
		t.Error = errText
	}
	s.tasks[id] = t
	return s.persistLocked()
}

// Delete removes a task by ID. Deleting a missing ID is not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return nil
	}
	delete(s.tasks, id)
	return s.persistLocked()
}

// persistLocked writes all tasks to disk atomically (tmp + rename).
// Callers must hold the write lock.
func (s *Store) persistLocked() error {
	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	data, err := sonic.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("marshal task store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename store: %w", err)
	}
	return nil
}
