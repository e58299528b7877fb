package scheduler

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a scheduled task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// transitions is the full status state machine. Anything not listed here is
// an invalid transition.
var transitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether s -> to is a legal status transition.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Origin is the routing context captured when a task is created. It is
// opaque to the scheduler and interpreted only by the notifier.
type Origin struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	ThreadID  string `json:"thread_id,omitempty"`
}

// Task is one scheduled unit of work: an instruction replayed through the
// agent at its trigger time, with the outcome routed back via Origin.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	TriggerAt   time.Time `json:"trigger_at"`
	Origin      Origin    `json:"origin"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`

	// Result and Error are set only after execution.
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewTaskID generates a short opaque task identifier.
func NewTaskID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
