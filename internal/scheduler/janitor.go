package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haru-ai/haru/internal/config"
	"github.com/haru-ai/haru/internal/pkg/logs"
)

// cronParser is a standard 5-field cron expression parser (minute hour dom month dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

const defaultSweepSchedule = "0 3 * * *"

// janitor periodically deletes terminal task records older than the
// retention window. Pending and running records are never touched.
type janitor struct {
	schedule cron.Schedule
	maxAge   time.Duration
	enabled  bool

	next time.Time
}

func newJanitor(cfg config.RetentionConfig) *janitor {
	j := &janitor{
		enabled: cfg.RetentionEnabled() && cfg.MaxAgeDays > 0,
		maxAge:  time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
	}

	spec := cfg.Schedule
	if spec == "" {
		spec = defaultSweepSchedule
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		// Config validation catches this earlier; fall back rather than
		// leave terminal records growing without bound.
		logs.Warn("[scheduler] retention schedule %q invalid, using %q: %v", spec, defaultSweepSchedule, err)
		sched, _ = cronParser.Parse(defaultSweepSchedule)
	}
	j.schedule = sched
	return j
}

func (j *janitor) reset(now time.Time) {
	if j.enabled {
		j.next = j.schedule.Next(now)
	}
}

func (j *janitor) maybeSweep(ctx context.Context, store *Store, now time.Time) {
	if !j.enabled || now.Before(j.next) {
		return
	}
	j.next = j.schedule.Next(now)

	cutoff := now.Add(-j.maxAge)
	removed := 0
	for _, t := range store.List(ListFilter{IncludeAll: true}) {
		if !t.Status.Terminal() || !t.TriggerAt.Before(cutoff) {
			continue
		}
		if err := store.Delete(t.ID); err != nil {
			logs.CtxWarn(ctx, "[scheduler] retention delete %s: %v", t.ID, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logs.CtxInfo(ctx, "[scheduler] retention sweep removed %d terminal tasks", removed)
	}
}
