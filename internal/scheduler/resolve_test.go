package scheduler

import (
	"reflect"
	"testing"

	"github.com/me/shopfloor/pkg/model"
)

func task(id string, seq int64, machine string, st model.Status) *model.Task {
	return &model.Task{ID: id, Seq: seq, Machine: machine, Status: st}
}

func TestResolveQueues(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*model.Task
		want  map[string]MachineQueue
	}{
		{
			name:  "empty table",
			tasks: nil,
			want:  map[string]MachineQueue{},
		},
		{
			name: "idle machine with backlog",
			tasks: []*model.Task{
				task("b", 2, "M1", model.Queued()),
				task("a", 1, "M1", model.Queued()),
			},
			want: map[string]MachineQueue{
				"M1": {Next: "a", Queued: 2},
			},
		},
		{
			name: "busy machine",
			tasks: []*model.Task{
				task("a", 1, "M1", model.Running(3)),
				task("b", 2, "M1", model.Queued()),
			},
			want: map[string]MachineQueue{
				"M1": {Busy: true, Running: "a", Next: "b", Queued: 1},
			},
		},
		{
			name: "completed tasks ignored",
			tasks: []*model.Task{
				task("a", 1, "M1", model.Completed()),
				task("b", 2, "M2", model.Completed()),
				task("c", 3, "M2", model.Queued()),
			},
			want: map[string]MachineQueue{
				"M2": {Next: "c", Queued: 1},
			},
		},
		{
			name: "machines are independent",
			tasks: []*model.Task{
				task("a", 1, "M1", model.Running(1)),
				task("b", 2, "M2", model.Queued()),
				task("c", 3, "M3", model.Running(9)),
			},
			want: map[string]MachineQueue{
				"M1": {Busy: true, Running: "a"},
				"M2": {Next: "b", Queued: 1},
				"M3": {Busy: true, Running: "c"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveQueues(tt.tasks)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveQueues() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIdleWithWork(t *testing.T) {
	queues := map[string]MachineQueue{
		"Mill":  {Next: "x", Queued: 1},
		"Lathe": {Next: "y", Queued: 2},
		"Drill": {Busy: true, Next: "z", Queued: 1},
		"Saw":   {},
	}
	got := IdleWithWork(queues)
	want := []string{"Lathe", "Mill"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IdleWithWork() = %v, want %v", got, want)
	}
}
