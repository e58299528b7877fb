package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/haru-ai/haru/internal/config"
	"github.com/haru-ai/haru/internal/pkg/logs"
	"github.com/haru-ai/haru/internal/timeparse"
)

var (
	// ErrNotOwner is returned when a cancel request comes from an origin
	// that did not create the task.
	ErrNotOwner = errors.New("task belongs to another user")
)

// TaskRunner is the external agent-execution capability invoked at trigger
// time. Implementations run the stored instruction and return the outcome
// text.
type TaskRunner interface {
	Execute(ctx context.Context, description string, origin Origin) (string, error)
}

// Notifier delivers a finished task's outcome back to wherever the task
// originated. Delivery failures never affect the task's terminal status.
type Notifier interface {
	Notify(ctx context.Context, task Task) error
}

// Manager owns the set of pending tasks for one process: it persists them,
// scans for due triggers, and dispatches execution. The store remains the
// source of truth across restarts; pending tasks whose trigger time elapsed
// while the process was down fire on the first tick.
type Manager struct {
	store    *Store
	runner   TaskRunner
	notifier Notifier
	cfg      config.SchedulerConfig

	// now is injectable for tests.
	now func() time.Time

	concurrent chan struct{} // semaphore sized to MaxConcurrentRuns

	runningMu sync.Mutex
	running   map[string]struct{} // task IDs currently dispatching

	janitor *janitor

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager backed by the configured store path.
func NewManager(cfg config.SchedulerConfig, runner TaskRunner, notifier Notifier) *Manager {
	maxConcurrent := cfg.MaxConcurrentRuns
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &Manager{
		store:      NewStore(cfg.Store),
		runner:     runner,
		notifier:   notifier,
		cfg:        cfg,
		now:        time.Now,
		concurrent: make(chan struct{}, maxConcurrent),
		running:    make(map[string]struct{}),
		janitor:    newJanitor(cfg.Retention),
	}
}

// Start loads persisted tasks and begins the trigger loop. Pending tasks
// already overdue are due on the first tick rather than dropped.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.store.Load(); err != nil {
		return fmt.Errorf("load task store: %w", err)
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.janitor.reset(m.now())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(ctx)
	}()

	logs.CtxInfo(ctx, "[scheduler] started (pending=%d max_concurrent=%d)",
		len(m.store.List(ListFilter{})), cap(m.concurrent))
	return nil
}

// Stop cancels the trigger loop and waits for in-flight executions. Tasks
// that never fired stay pending in the store for the next process to pick
// up.
func (m *Manager) Stop(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logs.CtxWarn(ctx, "[scheduler] stop timed out waiting for running tasks")
	}
	logs.CtxInfo(ctx, "[scheduler] stopped")
}

// Schedule parses the time expression, persists a new pending task, and
// returns it. A parse failure never touches the store.
func (m *Manager) Schedule(ctx context.Context, description, timeExpr string, origin Origin) (Task, error) {
	triggerAt, err := timeparse.Parse(timeExpr, m.now())
	if err != nil {
		return Task{}, fmt.Errorf("parse time expression %q: %w", timeExpr, err)
	}

	task := Task{
		ID:          m.newID(),
		Description: description,
		TriggerAt:   triggerAt,
		Origin:      origin,
		Status:      StatusPending,
		CreatedAt:   m.now(),
	}
	if err := m.store.Create(task); err != nil {
		return Task{}, fmt.Errorf("persist task: %w", err)
	}

	metricScheduled.Inc()
	logs.CtxInfo(ctx, "[scheduler] scheduled task %s at %s for user %s",
		task.ID, timeparse.Format(task.TriggerAt), origin.UserID)
	return task, nil
}

// Cancel disarms a pending task. Only the creating origin (or the
// configured admin) may cancel; a task that already started or finished is
// rejected with ErrInvalidTransition.
func (m *Manager) Cancel(ctx context.Context, id string, origin Origin) error {
	task, ok := m.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if !m.isOwner(task, origin) {
		logs.CtxWarn(ctx, "[scheduler] unauthorized cancel of task %s by user %s (owner %s)",
			id, origin.UserID, task.Origin.UserID)
		return fmt.Errorf("%w: %s", ErrNotOwner, id)
	}

	if err := m.store.UpdateStatus(id, StatusCancelled, "", ""); err != nil {
		return err
	}

	metricCancelled.Inc()
	logs.CtxInfo(ctx, "[scheduler] cancelled task %s", id)
	return nil
}

// List returns the origin user's tasks; includeAll adds running and
// terminal records so stuck or finished tasks stay visible.
func (m *Manager) List(origin Origin, includeAll bool) []Task {
	return m.store.List(ListFilter{UserID: origin.UserID, IncludeAll: includeAll})
}

// Get returns a task by ID.
func (m *Manager) Get(id string) (Task, bool) {
	return m.store.Get(id)
}

func (m *Manager) isOwner(task Task, origin Origin) bool {
	if task.Origin.UserID == origin.UserID {
		return true
	}
	return m.cfg.AdminUserID != "" && origin.UserID == m.cfg.AdminUserID
}

// newID retries on the (unlikely) short-ID collision so IDs stay unique
// for the store's lifetime.
func (m *Manager) newID() string {
	for {
		id := NewTaskID()
		if _, exists := m.store.Get(id); !exists {
			return id
		}
	}
}

func (m *Manager) loop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	now := m.now()
	for _, task := range m.store.ListDue(now) {
		if !m.tryAcquire() {
			break // hit concurrency limit, try next tick
		}
		if m.isRunning(task.ID) {
			m.release()
			continue
		}

		m.markRunning(task.ID)
		t := task // capture for goroutine
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			defer m.release()
			defer m.markNotRunning(t.ID)
			m.execute(ctx, t)
		}()
	}

	m.janitor.maybeSweep(ctx, m.store, now)
}

// concurrency helpers

func (m *Manager) tryAcquire() bool {
	select {
	case m.concurrent <- struct{}{}:
		return true
	default:
		return false
	}
}

func (m *Manager) release() {
	<-m.concurrent
}

func (m *Manager) isRunning(id string) bool {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()
	_, ok := m.running[id]
	return ok
}

func (m *Manager) markRunning(id string) {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()
	m.running[id] = struct{}{}
}

func (m *Manager) markNotRunning(id string) {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()
	delete(m.running, id)
}
