package model

import (
	"fmt"
	"strconv"
)

// StatusKind is the life-cycle stage of a Task.
type StatusKind string

const (
	StatusQueued    StatusKind = "queued"
	StatusRunning   StatusKind = "running"
	StatusCompleted StatusKind = "completed"
)

// String returns the string representation of the status kind.
func (k StatusKind) String() string {
	return string(k)
}

// IsTerminal returns true if no further transition is possible.
func (k StatusKind) IsTerminal() bool {
	return k == StatusCompleted
}

// Valid reports whether k is one of the known kinds.
func (k StatusKind) Valid() bool {
	switch k {
	case StatusQueued, StatusRunning, StatusCompleted:
		return true
	}
	return false
}

// ValidTransitions defines the allowed status transitions for Tasks.
var ValidTransitions = map[StatusKind][]StatusKind{
	StatusQueued:  {StatusRunning},
	StatusRunning: {StatusCompleted},
}

// CanTransitionTo returns true if moving from the current kind to next is valid.
func (k StatusKind) CanTransitionTo(next StatusKind) bool {
	for _, allowed := range ValidTransitions[k] {
		if allowed == next {
			return true
		}
	}
	return false
}

// rank orders kinds along the life cycle.
func (k StatusKind) rank() int {
	switch k {
	case StatusQueued:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// Status is the tagged variant Queued | Running{Remaining} | Completed.
// Remaining is meaningful only while running and is zero otherwise.
type Status struct {
	Kind      StatusKind `json:"kind"`
	Remaining int        `json:"remaining_seconds"`
}

// Queued returns the status of a task that has not started.
func Queued() Status { return Status{Kind: StatusQueued} }

// Running returns the status of a task with remaining whole seconds left.
func Running(remaining int) Status {
	if remaining < 0 {
		remaining = 0
	}
	return Status{Kind: StatusRunning, Remaining: remaining}
}

// Completed returns the terminal status.
func Completed() Status { return Status{Kind: StatusCompleted} }

func (s Status) IsQueued() bool    { return s.Kind == StatusQueued }
func (s Status) IsRunning() bool   { return s.Kind == StatusRunning }
func (s Status) IsCompleted() bool { return s.Kind == StatusCompleted }

// Legacy returns the wire encoding: "queued", the decimal remaining
// seconds while running, or "completed".
func (s Status) Legacy() string {
	if s.Kind == StatusRunning {
		return strconv.Itoa(s.Remaining)
	}
	return string(s.Kind)
}

func (s Status) String() string {
	if s.Kind == StatusRunning {
		return fmt.Sprintf("running(%ds)", s.Remaining)
	}
	return string(s.Kind)
}

// ParseLegacyStatus decodes the wire encoding produced by Legacy.
// remaining is the separate tuple field, used when the status field is
// ambiguous.
func ParseLegacyStatus(v string, remaining int) (Status, error) {
	switch v {
	case string(StatusQueued):
		return Queued(), nil
	case string(StatusCompleted):
		return Completed(), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return Status{}, fmt.Errorf("unknown status %q", v)
	}
	if n != remaining {
		n = remaining
	}
	return Running(n), nil
}

// InvalidTransitionError is returned when a status transition is invalid.
type InvalidTransitionError struct {
	ID   string
	From StatusKind
	To   StatusKind
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid task status transition: %s → %s (task %s)", e.From, e.To, e.ID)
}
