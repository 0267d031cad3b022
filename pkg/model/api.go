package model

import (
	"strings"
	"time"
)

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds list metadata. The task table is small and always
// returned whole, so HasMore is false in practice.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// Sortable task columns, named after their persisted columns.
const (
	SortByID                   = "id"
	SortByCreatedAt            = "created_at"
	SortByMachine              = "machine"
	SortByMaterial             = "material"
	SortBySpeed                = "speed"
	SortByStatus               = "status"
	SortByRemainingSeconds     = "remaining_seconds"
	SortByExpectedCompletionAt = "expected_completion_at"
)

var sortColumns = map[string]bool{
	SortByID:                   true,
	SortByCreatedAt:            true,
	SortByMachine:              true,
	SortByMaterial:             true,
	SortBySpeed:                true,
	SortByStatus:               true,
	SortByRemainingSeconds:     true,
	SortByExpectedCompletionAt: true,
}

// ListOptions configures a full task scan.
type ListOptions struct {
	SortBy string // One of the SortBy* columns; empty means creation order.
	Desc   bool
}

// DefaultListOptions returns creation order, oldest first.
func DefaultListOptions() ListOptions {
	return ListOptions{SortBy: SortByCreatedAt}
}

// Normalize lowercases SortBy and falls back to creation order for
// unknown columns. It reports whether the requested column was accepted.
func (o *ListOptions) Normalize() bool {
	o.SortBy = strings.ToLower(strings.TrimSpace(o.SortBy))
	if o.SortBy == "" {
		o.SortBy = SortByCreatedAt
		return true
	}
	if !sortColumns[o.SortBy] {
		o.SortBy = SortByCreatedAt
		return false
	}
	return true
}
