package model

import "time"

// Task status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusKilled    = "killed"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
		StatusKilled:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusKilled:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Task is one unit of work submitted to the scheduler: a registered handler
// name plus arguments that are copied across the context boundary at load
// time. ID doubles as the task's identity for executable-loading
// memoization.
type Task struct {
	ID      string         `json:"id"`
	Handler string         `json:"handler"`
	Args    map[string]any `json:"args,omitempty"`
}

// NewTask creates a task for the named handler with a fresh ID.
func NewTask(handler string, args map[string]any) *Task {
	return &Task{ID: NewID(), Handler: handler, Args: args}
}

// TaskRecord is the persisted history entry for one submitted task.
// It tracks bookkeeping only; the live execution state lives with the
// scheduler and its handles.
type TaskRecord struct {
	ID         string     `json:"id"`
	Handler    string     `json:"handler"`
	Status     string     `json:"status"`
	Result     []byte     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
