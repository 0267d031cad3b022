package model

import (
	"time"
)

// Task is one job bound to one machine.
type Task struct {
	ID              string    `json:"id"`
	Seq             int64     `json:"seq"`
	CreatedAt       time.Time `json:"created_at"`
	Machine         string    `json:"machine"`
	Material        string    `json:"material"`
	Speed           int       `json:"speed"`
	DurationSeconds int       `json:"duration_seconds"`
	Status          Status    `json:"status"`

	// ExpectedCompletionAt is set when the task starts running and kept as
	// the historical target once it completes.
	ExpectedCompletionAt *time.Time `json:"expected_completion_at,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.ExpectedCompletionAt != nil {
		at := *t.ExpectedCompletionAt
		c.ExpectedCompletionAt = &at
	}
	return &c
}

// RemainingSeconds is the countdown value; zero unless running.
func (t *Task) RemainingSeconds() int {
	return t.Status.Remaining
}

// NewTask holds the validated inputs of a create command.
type NewTask struct {
	Machine         string
	Material        string
	Speed           int
	DurationSeconds int
}

// TaskPatch holds the optional fields of an update command. A nil field
// is left untouched.
type TaskPatch struct {
	Machine  *string
	Material *string
	Speed    *int
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Machine == nil && p.Material == nil && p.Speed == nil
}
