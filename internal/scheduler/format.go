package scheduler

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/haru-ai/haru/internal/consts"
	"github.com/haru-ai/haru/internal/timeparse"
)

// LoadTasksFromStore reads the persisted task file directly, for CLI
// inspection without a running daemon.
func LoadTasksFromStore(path string) ([]Task, error) {
	if path == "" {
		path = consts.DefaultTaskStorePath()
	}
	store := NewStore(path)
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store.List(ListFilter{IncludeAll: true}), nil
}

// FormatTaskList renders tasks as a human-readable table for the CLI.
func FormatTaskList(tasks []Task) string {
	if len(tasks) == 0 {
		return "No scheduled tasks.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %-11s %-22s %-12s %s\n", "ID", "STATUS", "TRIGGER", "USER", "DESCRIPTION")
	for _, t := range tasks {
		desc := t.Description
		if len(desc) > 48 {
			desc = desc[:48] + "..."
		}
		fmt.Fprintf(&b, "%-10s %-11s %-22s %-12s %s\n",
			t.ID,
			colorizeStatus(t.Status),
			timeparse.Format(t.TriggerAt),
			t.Origin.UserID,
			desc,
		)
	}
	return b.String()
}

func colorizeStatus(s Status) string {
	switch s {
	case StatusPending:
		return color.YellowString(string(s))
	case StatusRunning:
		return color.CyanString(string(s))
	case StatusCompleted:
		return color.GreenString(string(s))
	case StatusFailed:
		return color.RedString(string(s))
	case StatusCancelled:
		return color.HiBlackString(string(s))
	default:
		return string(s)
	}
}
