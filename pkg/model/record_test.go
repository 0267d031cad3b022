package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRecord_MarshalJSON(t *testing.T) {
	created := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	expected := created.Add(90 * time.Second)

	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "queued",
			rec:  Record{ID: "task_1", CreatedAt: created, Machine: "Lathe HSS", Material: "Steel", Speed: 120, Status: Queued()},
			want: `["task_1","2026-03-01 08:30:00.000000","Lathe HSS","Steel",120,"queued",0,""]`,
		},
		{
			name: "running",
			rec:  Record{ID: "task_2", CreatedAt: created, Machine: "M1", Material: "Brass", Speed: 80, Status: Running(42), ExpectedCompletionAt: &expected},
			want: `["task_2","2026-03-01 08:30:00.000000","M1","Brass",80,"42",42,"2026-03-01 08:31:30.000000"]`,
		},
		{
			name: "completed",
			rec:  Record{ID: "task_3", CreatedAt: created, Machine: "M1", Material: "Brass", Speed: 80, Status: Completed(), ExpectedCompletionAt: &expected},
			want: `["task_3","2026-03-01 08:30:00.000000","M1","Brass",80,"completed",0,"2026-03-01 08:31:30.000000"]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.rec)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal = %s\nwant      %s", got, tt.want)
			}
		})
	}
}

func TestRecord_UnmarshalJSON(t *testing.T) {
	raw := `["task_9","2026-03-01 08:30:00.000000","M2","Aluminium","150","7",7,"2026-03-01 08:30:07.000000"]`
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.ID != "task_9" || r.Machine != "M2" || r.Material != "Aluminium" {
		t.Errorf("identity fields = %+v", r)
	}
	if r.Speed != 150 {
		t.Errorf("Speed = %d, want 150 (numeric string accepted)", r.Speed)
	}
	if r.Status != Running(7) {
		t.Errorf("Status = %v, want running(7s)", r.Status)
	}
	if r.ExpectedCompletionAt == nil || r.ExpectedCompletionAt.Second() != 7 {
		t.Errorf("ExpectedCompletionAt = %v", r.ExpectedCompletionAt)
	}
}

func TestRecord_UnmarshalJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"not an array", `{"id":"x"}`, "task tuple"},
		{"short tuple", `["a","b"]`, "want 8 fields"},
		{"bad time", `["a","yesterday","m","x",1,"queued",0,""]`, "createdAt"},
		{"bad status", `["a","2026-03-01 08:30:00.000000","m","x",1,"On queue",0,""]`, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			err := json.Unmarshal([]byte(tt.raw), &r)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestRecord_RemainingAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	expected := now.Add(10 * time.Second)
	r := Record{Status: Running(10), ExpectedCompletionAt: &expected}

	if got := r.RemainingAt(now.Add(2500 * time.Millisecond)); got != 8 {
		t.Errorf("RemainingAt(+2.5s) = %d, want 8", got)
	}
	if got := r.RemainingAt(now.Add(time.Minute)); got != 0 {
		t.Errorf("RemainingAt(+60s) = %d, want 0", got)
	}
	if got := r.RemainingAt(now.Add(-time.Minute)); got != 10 {
		t.Errorf("RemainingAt(-60s) = %d, want 10 (never increases)", got)
	}
	q := Record{Status: Queued()}
	if got := q.RemainingAt(now); got != 0 {
		t.Errorf("queued RemainingAt = %d, want 0", got)
	}
}

func TestCeilSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Nanosecond, 1},
		{time.Second, 1},
		{4500 * time.Millisecond, 5},
		{5 * time.Second, 5},
	}
	for _, tt := range tests {
		if got := CeilSeconds(tt.d); got != tt.want {
			t.Errorf("CeilSeconds(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}
