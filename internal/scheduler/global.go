package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/haru-ai/haru/internal/config"
	"github.com/haru-ai/haru/internal/pkg/logs"
)

var (
	globalMu      sync.RWMutex
	globalManager *Manager
)

// Init creates the process-wide manager. Call Start afterwards to load the
// store and begin the trigger loop.
func Init(cfg config.SchedulerConfig, runner TaskRunner, notifier Notifier) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalManager = NewManager(cfg, runner, notifier)
}

// Default returns the global manager, or nil if Init has not been called.
func Default() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// Start loads persisted tasks and begins the global manager's loop.
func Start(ctx context.Context) error {
	m := Default()
	if m == nil {
		return fmt.Errorf("scheduler: manager not initialized, call Init first")
	}
	return m.Start(ctx)
}

// Stop gracefully stops the global manager. Safe to call if Init was never
// called.
func Stop(ctx context.Context) {
	m := Default()
	if m == nil {
		return
	}
	m.Stop(ctx)
	logs.CtxInfo(ctx, "[scheduler] global manager stopped")
}
