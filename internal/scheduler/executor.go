package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/haru-ai/haru/internal/pkg/logs"
)

// execute moves a due task through running to a terminal status and delivers
// the outcome. The pending -> running transition is persisted before the
// runner is invoked; a crash after that point leaves the task running
// forever, which List(includeAll) keeps visible for manual intervention.
func (m *Manager) execute(ctx context.Context, task Task) {
	if err := m.store.UpdateStatus(task.ID, StatusRunning, "", ""); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// Lost the race against a cancel or a duplicate dispatch;
			// the state machine already rejected us.
			logs.CtxWarn(ctx, "[scheduler] skip task %s: %v", task.ID, err)
		} else {
			logs.CtxError(ctx, "[scheduler] mark task %s running: %v", task.ID, err)
		}
		return
	}

	metricFired.Inc()
	logs.CtxInfo(ctx, "[scheduler] firing task %s (due %s)", task.ID, task.TriggerAt.Format(time.RFC3339))

	// Backstop timeout on the dispatch goroutine; the runner is expected
	// to enforce its own.
	timeout := time.Duration(m.cfg.TaskTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, runErr := m.runner.Execute(runCtx, task.Description, task.Origin)

	if runErr != nil {
		metricFailed.Inc()
		if err := m.store.UpdateStatus(task.ID, StatusFailed, "", runErr.Error()); err != nil {
			logs.CtxError(ctx, "[scheduler] mark task %s failed: %v", task.ID, err)
			return
		}
		logs.CtxWarn(ctx, "[scheduler] task %s failed: %v", task.ID, runErr)
	} else {
		metricCompleted.Inc()
		if err := m.store.UpdateStatus(task.ID, StatusCompleted, result, ""); err != nil {
			logs.CtxError(ctx, "[scheduler] mark task %s completed: %v", task.ID, err)
			return
		}
		logs.CtxInfo(ctx, "[scheduler] task %s completed", task.ID)
	}

	m.notify(ctx, task.ID)
}

// notify delivers the terminal outcome via the external notifier. Failures
// are logged only; the task is done regardless of delivery.
func (m *Manager) notify(ctx context.Context, id string) {
	task, ok := m.store.Get(id)
	if !ok {
		logs.CtxError(ctx, "[scheduler] notify: task %s disappeared", id)
		return
	}
	if err := m.notifier.Notify(ctx, task); err != nil {
		logs.CtxWarn(ctx, "[scheduler] notify task %s to channel %s failed: %v",
			task.ID, task.Origin.ChannelID, err)
	}
}
