package scheduler

import (
	"time"

	"github.com/me/shopfloor/pkg/model"
)

type transition struct {
	id      string
	machine string
	to      model.StatusKind
}

// workset is a copy-on-write view of the task table. Unchanged tasks are
// shared with the table; a task is cloned the first time it is edited, so
// discarding a workset leaves the table untouched.
type workset struct {
	tasks       map[string]*model.Task
	changed     map[string]bool
	transitions []transition
}

func newWorkset(table map[string]*model.Task) *workset {
	tasks := make(map[string]*model.Task, len(table))
	for id, t := range table {
		tasks[id] = t
	}
	return &workset{tasks: tasks, changed: make(map[string]bool)}
}

func (w *workset) edit(id string) *model.Task {
	if !w.changed[id] {
		w.tasks[id] = w.tasks[id].Clone()
		w.changed[id] = true
	}
	return w.tasks[id]
}

func (w *workset) list() []*model.Task {
	tasks := make([]*model.Task, 0, len(w.tasks))
	for _, t := range w.tasks {
		tasks = append(tasks, t)
	}
	return tasks
}

func (w *workset) changedTasks() []*model.Task {
	tasks := make([]*model.Task, 0, len(w.changed))
	for id := range w.changed {
		tasks = append(tasks, w.tasks[id])
	}
	sortBySeq(tasks)
	return tasks
}

// advance recomputes the countdown of every running task from its
// expected completion time. The countdown never increases, so a clock
// stepping backwards only pauses it. Tasks at zero complete.
func (w *workset) advance(now time.Time) {
	for id, t := range w.tasks {
		if !t.Status.IsRunning() {
			continue
		}
		prev := t.Status.Remaining
		if t.ExpectedCompletionAt == nil {
			// Rows written without a target resume from the stored countdown.
			at := now.Add(time.Duration(prev) * time.Second)
			w.edit(id).ExpectedCompletionAt = &at
			continue
		}

		left := model.CeilSeconds(t.ExpectedCompletionAt.Sub(now))
		if left > prev {
			left = prev
		}
		switch {
		case left <= 0:
			w.complete(id)
		case left != prev:
			w.edit(id).Status = model.Running(left)
		}
	}
}

func (w *workset) complete(id string) {
	t := w.edit(id)
	t.Status = model.Completed()
	w.transitions = append(w.transitions, transition{id: id, machine: t.Machine, to: model.StatusCompleted})
}

// startIdle starts the next queued task on every idle machine and returns
// how many tasks were started. A zero-duration task completes on the spot
// and frees its machine for the next one in the same pass.
func (w *workset) startIdle(now time.Time) int {
	started := 0
	for {
		queues := ResolveQueues(w.list())
		machines := IdleWithWork(queues)
		if len(machines) == 0 {
			return started
		}
		for _, m := range machines {
			id := queues[m].Next
			t := w.edit(id)
			at := now.Add(time.Duration(t.DurationSeconds) * time.Second)
			t.ExpectedCompletionAt = &at
			t.Status = model.Running(t.DurationSeconds)
			w.transitions = append(w.transitions, transition{id: id, machine: m, to: model.StatusRunning})
			started++

			if t.DurationSeconds == 0 {
				w.complete(id)
			}
		}
	}
}
