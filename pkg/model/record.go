package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimeLayout is the timestamp layout used in task tuples.
const TimeLayout = "2006-01-02 15:04:05.000000"

// Record is the 8-field wire tuple of a task:
// id, createdAt, machine, material, speed, status, remainingSeconds,
// expectedCompletionAt.
type Record struct {
	ID                   string
	CreatedAt            time.Time
	Machine              string
	Material             string
	Speed                int
	Status               Status
	ExpectedCompletionAt *time.Time
}

// RecordOf converts a task to its wire record.
func RecordOf(t *Task) Record {
	r := Record{
		ID:        t.ID,
		CreatedAt: t.CreatedAt,
		Machine:   t.Machine,
		Material:  t.Material,
		Speed:     t.Speed,
		Status:    t.Status,
	}
	if t.ExpectedCompletionAt != nil {
		at := *t.ExpectedCompletionAt
		r.ExpectedCompletionAt = &at
	}
	return r
}

// RecordsOf converts a task table to wire records, preserving order.
func RecordsOf(tasks []*Task) []Record {
	out := make([]Record, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, RecordOf(t))
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// MarshalJSON encodes the record as an ordered 8-element array.
func (r Record) MarshalJSON() ([]byte, error) {
	expected := ""
	if r.ExpectedCompletionAt != nil {
		expected = formatTime(*r.ExpectedCompletionAt)
	}
	return json.Marshal([]any{
		r.ID,
		formatTime(r.CreatedAt),
		r.Machine,
		r.Material,
		r.Speed,
		r.Status.Legacy(),
		r.Status.Remaining,
		expected,
	})
}

// UnmarshalJSON decodes an 8-element tuple. Speed and remaining seconds
// are accepted as numbers or numeric strings.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("task tuple: %w", err)
	}
	if len(fields) != 8 {
		return fmt.Errorf("task tuple: want 8 fields, got %d", len(fields))
	}

	var createdAt, status, expected string
	var speed, remaining json.Number
	targets := []struct {
		name string
		dst  any
	}{
		{"id", &r.ID},
		{"createdAt", &createdAt},
		{"machine", &r.Machine},
		{"material", &r.Material},
		{"speed", &speed},
		{"status", &status},
		{"remainingSeconds", &remaining},
		{"expectedCompletionAt", &expected},
	}
	for i, tgt := range targets {
		if err := json.Unmarshal(fields[i], tgt.dst); err != nil {
			return fmt.Errorf("task tuple field %s: %w", tgt.name, err)
		}
	}

	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return fmt.Errorf("task tuple field createdAt: %w", err)
	}
	if r.Speed, err = atoiNumber(speed); err != nil {
		return fmt.Errorf("task tuple field speed: %w", err)
	}
	rem, err := atoiNumber(remaining)
	if err != nil {
		return fmt.Errorf("task tuple field remainingSeconds: %w", err)
	}
	if r.Status, err = ParseLegacyStatus(status, rem); err != nil {
		return fmt.Errorf("task tuple field status: %w", err)
	}
	r.ExpectedCompletionAt = nil
	if expected != "" {
		at, err := parseTime(expected)
		if err != nil {
			return fmt.Errorf("task tuple field expectedCompletionAt: %w", err)
		}
		r.ExpectedCompletionAt = &at
	}
	return nil
}

// atoiNumber accepts "", a JSON number, or a quoted numeric string.
func atoiNumber(n json.Number) (int, error) {
	if n == "" {
		return 0, nil
	}
	return strconv.Atoi(n.String())
}

// RemainingAt recomputes the countdown of a running record from its
// expected completion time, as a viewer without new broadcasts would.
func (r Record) RemainingAt(now time.Time) int {
	if !r.Status.IsRunning() || r.ExpectedCompletionAt == nil {
		return r.Status.Remaining
	}
	left := CeilSeconds(r.ExpectedCompletionAt.Sub(now))
	if left > r.Status.Remaining {
		return r.Status.Remaining
	}
	return left
}

// CeilSeconds rounds d up to whole seconds, never below zero.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
