package model

import (
	"testing"
	"time"
)

func TestTask_Clone(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := &Task{ID: "task_1", Machine: "M1", Status: Running(5), ExpectedCompletionAt: &at}

	c := orig.Clone()
	c.Machine = "M2"
	*c.ExpectedCompletionAt = at.Add(time.Hour)

	if orig.Machine != "M1" {
		t.Errorf("orig.Machine = %q, want M1", orig.Machine)
	}
	if !orig.ExpectedCompletionAt.Equal(at) {
		t.Errorf("orig.ExpectedCompletionAt changed to %v", orig.ExpectedCompletionAt)
	}
}

func TestTaskPatch_Empty(t *testing.T) {
	speed := 10
	if !(TaskPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
	if (TaskPatch{Speed: &speed}).Empty() {
		t.Error("patch with speed should not be empty")
	}
}
