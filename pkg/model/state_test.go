package model

import "testing"

func TestStatusKind_IsTerminal(t *testing.T) {
	tests := []struct {
		kind     StatusKind
		terminal bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusCompleted, true},
	}
	for _, tt := range tests {
		if got := tt.kind.IsTerminal(); got != tt.terminal {
			t.Errorf("StatusKind(%q).IsTerminal() = %v, want %v", tt.kind, got, tt.terminal)
		}
	}
}

func TestStatusKind_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  StatusKind
		to    StatusKind
		valid bool
	}{
		// Valid transitions
		{StatusQueued, StatusRunning, true},
		{StatusRunning, StatusCompleted, true},

		// Invalid transitions
		{StatusQueued, StatusCompleted, false},
		{StatusQueued, StatusQueued, false},
		{StatusRunning, StatusQueued, false},
		{StatusRunning, StatusRunning, false},
		{StatusCompleted, StatusQueued, false},
		{StatusCompleted, StatusRunning, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("StatusKind(%q).CanTransitionTo(%q) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestStatus_Legacy(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Queued(), "queued"},
		{Running(42), "42"},
		{Running(0), "0"},
		{Running(-3), "0"},
		{Completed(), "completed"},
	}
	for _, tt := range tests {
		if got := tt.status.Legacy(); got != tt.want {
			t.Errorf("%v.Legacy() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestParseLegacyStatus(t *testing.T) {
	tests := []struct {
		in        string
		remaining int
		want      Status
		wantErr   bool
	}{
		{"queued", 0, Queued(), false},
		{"completed", 0, Completed(), false},
		{"17", 17, Running(17), false},
		{"17", 12, Running(12), false},
		{"On queue", 0, Status{}, true},
		{"", 0, Status{}, true},
	}
	for _, tt := range tests {
		got, err := ParseLegacyStatus(tt.in, tt.remaining)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLegacyStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLegacyStatus(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{ID: "task_123", From: StatusCompleted, To: StatusQueued}
	want := "invalid task status transition: completed → queued (task task_123)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
