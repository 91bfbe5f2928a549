package tasks

import (
	"context"
	"time"
)

// TaskState represents the current state of a background task
type TaskState string

const (
	TaskStateQueued    TaskState = "queued"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
)

// Finished reports whether the state is terminal
func (s TaskState) Finished() bool {
	return s == TaskStateCompleted || s == TaskStateFailed
}

// TaskID uniquely identifies a submitted task
type TaskID string

// Func is the unit of work. The context is owned by the executor, not by the
// submitter, so it outlives the connection that scheduled the task.
type Func func(ctx context.Context) error

// Task describes work to run in the background
type Task struct {
	// Name groups tasks of the same kind, e.g. "mind_map"
	Name string
	// SessionID is informational and used for filtering
	SessionID string
	Run       Func
	// Timeout overrides the executor default when positive
	Timeout time.Duration
}

// TaskInstance represents a submitted task and its progress
type TaskInstance struct {
	ID          TaskID     `json:"id"`
	Name        string     `json:"name"`
	SessionID   string     `json:"session_id,omitempty"`
	State       TaskState  `json:"state"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// TaskEvent represents an event in the task lifecycle
type TaskEvent struct {
	TaskID    TaskID    `json:"task_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Event types
const (
	EventTaskQueued    = "task_queued"
	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"
)
