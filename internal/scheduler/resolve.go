package scheduler

import (
	"sort"

	"github.com/me/shopfloor/pkg/model"
)

// MachineQueue is the derived state of one machine.
type MachineQueue struct {
	Busy    bool   `json:"busy"`
	Running string `json:"running,omitempty"`
	Next    string `json:"next,omitempty"`
	Queued  int    `json:"queued"`
}

// ResolveQueues derives, per machine, whether a task is running on it and
// which queued task is next in line. Next is the queued task with the
// lowest creation sequence. Completed tasks are ignored; machines that only
// have completed tasks do not appear.
func ResolveQueues(tasks []*model.Task) map[string]MachineQueue {
	queues := make(map[string]MachineQueue)
	nextSeq := make(map[string]int64)

	for _, t := range tasks {
		switch t.Status.Kind {
		case model.StatusRunning:
			q := queues[t.Machine]
			q.Busy = true
			q.Running = t.ID
			queues[t.Machine] = q
		case model.StatusQueued:
			q := queues[t.Machine]
			q.Queued++
			if seq, ok := nextSeq[t.Machine]; !ok || t.Seq < seq {
				nextSeq[t.Machine] = t.Seq
				q.Next = t.ID
			}
			queues[t.Machine] = q
		}
	}
	return queues
}

// IdleWithWork returns, in machine name order, the machines that are not
// busy and have a queued task waiting.
func IdleWithWork(queues map[string]MachineQueue) []string {
	var machines []string
	for name, q := range queues {
		if !q.Busy && q.Next != "" {
			machines = append(machines, name)
		}
	}
	sort.Strings(machines)
	return machines
}
