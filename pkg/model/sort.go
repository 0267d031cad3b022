package model

import (
	"sort"
	"strings"
)

// Display column names used by the legacy table view.
var displayColumns = map[string]string{
	"task id":   SortByID,
	"time":      SortByCreatedAt,
	"machine":   SortByMachine,
	"material":  SortByMaterial,
	"speed":     SortBySpeed,
	"status":    SortByStatus,
	"time left": SortByRemainingSeconds,
}

// ColumnFor maps a display name ("Task ID", "Time left", ...) or a column
// name to a SortBy column. ok is false for unknown names.
func ColumnFor(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if col, ok := displayColumns[key]; ok {
		return col, true
	}
	if sortColumns[key] {
		return key, true
	}
	return "", false
}

// StatusOrder ranks statuses for display: queued, then running, then
// completed when ascending.
func StatusOrder(s Status) int {
	return s.Kind.rank()
}

// SortRecords sorts records in place by column. Ties keep their input order.
func SortRecords(records []Record, column string, desc bool) {
	less := recordLess(column)
	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return less(records[j], records[i])
		}
		return less(records[i], records[j])
	})
}

func recordLess(column string) func(a, b Record) bool {
	switch column {
	case SortByID:
		return func(a, b Record) bool { return a.ID < b.ID }
	case SortByMachine:
		return func(a, b Record) bool { return a.Machine < b.Machine }
	case SortByMaterial:
		return func(a, b Record) bool { return a.Material < b.Material }
	case SortBySpeed:
		return func(a, b Record) bool { return a.Speed < b.Speed }
	case SortByStatus:
		return func(a, b Record) bool { return StatusOrder(a.Status) < StatusOrder(b.Status) }
	case SortByRemainingSeconds:
		return func(a, b Record) bool { return a.Status.Remaining < b.Status.Remaining }
	case SortByExpectedCompletionAt:
		return func(a, b Record) bool {
			if a.ExpectedCompletionAt == nil || b.ExpectedCompletionAt == nil {
				return a.ExpectedCompletionAt == nil && b.ExpectedCompletionAt != nil
			}
			return a.ExpectedCompletionAt.Before(*b.ExpectedCompletionAt)
		}
	default:
		return func(a, b Record) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}
