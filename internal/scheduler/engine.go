package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/me/shopfloor/internal/logging"
	"github.com/me/shopfloor/internal/metrics"
	"github.com/me/shopfloor/internal/store"
	"github.com/me/shopfloor/pkg/model"
)

// Publisher receives every table snapshot produced by a state change.
// Publish is called outside the engine lock and must not block. Versions
// increase strictly; a publisher may see them out of order.
type Publisher interface {
	Publish(version uint64, records []model.Record)
}

// Refresher is implemented by publishers that keep the latest table for
// late joiners. Refresh is called after a tick that only moved countdowns;
// it must not be fanned out to existing observers.
type Refresher interface {
	Refresh(version uint64, records []model.Record)
}

// TaskValidator checks task fields against the machine catalog.
type TaskValidator interface {
	CheckTask(machine, material string, speed int) error
	ExpectedSeconds(machine string) (int, bool)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, typically with a clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithValidator enables catalog checks on create and update.
func WithValidator(v TaskValidator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithPublisher sets the receiver of state snapshots.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// Engine owns the canonical task table. Every mutation, whether a client
// command or a scheduler tick, runs under one lock and is committed to the
// store before the in-memory table changes.
type Engine struct {
	store     store.Store
	clock     clockwork.Clock
	validator TaskValidator
	publisher Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	tasks   map[string]*model.Task
	seq     int64
	version uint64
}

// NewEngine creates an engine with an empty table. Call Load to read the
// persisted tasks.
func NewEngine(st store.Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		clock:  clockwork.NewRealClock(),
		logger: logging.Component(logger, "scheduler"),
		tasks:  make(map[string]*model.Task),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock returns the engine's time source.
func (e *Engine) Clock() clockwork.Clock {
	return e.clock
}

type snapshot struct {
	version uint64
	records []model.Record
}

// Load replaces the table with the store contents and publishes it.
// Tasks that were running keep their expected completion time; the next
// tick completes the overdue ones.
func (e *Engine) Load(ctx context.Context) error {
	tasks, err := e.store.ListTasks(ctx, model.DefaultListOptions())
	if err != nil {
		return model.NewStoreError("load tasks", err)
	}
	seq, err := e.store.MaxSeq(ctx)
	if err != nil {
		return model.NewStoreError("load sequence", err)
	}

	e.mu.Lock()
	e.tasks = make(map[string]*model.Task, len(tasks))
	for _, t := range tasks {
		e.tasks[t.ID] = t
	}
	e.seq = seq
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Info("task table loaded", "tasks", len(tasks), "seq", seq)
	e.publish(snap)
	return nil
}

// Create validates and inserts a queued task, then starts it at once if
// its machine is idle.
func (e *Engine) Create(ctx context.Context, nt model.NewTask) (*model.Task, error) {
	task, snap, err := e.create(ctx, nt)
	if err != nil {
		return nil, err
	}
	e.publish(snap)
	return task, nil
}

func (e *Engine) create(ctx context.Context, nt model.NewTask) (*model.Task, snapshot, error) {
	if nt.DurationSeconds < 0 {
		return nil, snapshot{}, model.NewValidationError("invalid duration",
			model.FieldError{Field: "duration_seconds", Message: "must not be negative"})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.validator != nil {
		if err := e.validator.CheckTask(nt.Machine, nt.Material, nt.Speed); err != nil {
			return nil, snapshot{}, err
		}
	}

	now := e.clock.Now().UTC()
	task := &model.Task{
		ID:              "task_" + uuid.New().String(),
		Seq:             e.seq + 1,
		CreatedAt:       now,
		Machine:         nt.Machine,
		Material:        nt.Material,
		Speed:           nt.Speed,
		DurationSeconds: nt.DurationSeconds,
		Status:          model.Queued(),
	}
	if err := e.store.CreateTask(ctx, task); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("command").Inc()
		return nil, snapshot{}, model.NewStoreError("create task", err)
	}
	e.seq = task.Seq
	e.tasks[task.ID] = task
	e.logger.Info("task created", "task_id", task.ID, "machine", task.Machine, "duration_seconds", task.DurationSeconds)

	e.startIdleLocked(ctx, now)
	return e.tasks[task.ID].Clone(), e.snapshotLocked(), nil
}

// Update applies a patch. Machine and material are frozen once the task
// leaves the queue; a completed task accepts no change at all. A speed
// change on a running task leaves its countdown untouched.
func (e *Engine) Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	task, snap, err := e.update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	e.publish(snap)
	return task, nil
}

func (e *Engine) update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.tasks[id]
	if !ok {
		return nil, snapshot{}, model.NewNotFoundError("task", id)
	}
	if cur.Status.IsCompleted() {
		return nil, snapshot{}, model.NewTerminalStateError(id)
	}

	next := cur.Clone()
	if patch.Machine != nil && *patch.Machine != cur.Machine {
		if !cur.Status.IsQueued() {
			return nil, snapshot{}, model.NewImmutableFieldError(id, "machine", cur.Status.Kind)
		}
		next.Machine = *patch.Machine
		if e.validator != nil {
			if secs, ok := e.validator.ExpectedSeconds(next.Machine); ok {
				next.DurationSeconds = secs
			}
		}
	}
	if patch.Material != nil && *patch.Material != cur.Material {
		if !cur.Status.IsQueued() {
			return nil, snapshot{}, model.NewImmutableFieldError(id, "material", cur.Status.Kind)
		}
		next.Material = *patch.Material
	}
	if patch.Speed != nil {
		next.Speed = *patch.Speed
	}

	if e.validator != nil {
		if err := e.validator.CheckTask(next.Machine, next.Material, next.Speed); err != nil {
			return nil, snapshot{}, err
		}
	}

	if err := e.store.UpdateTask(ctx, next); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("command").Inc()
		return nil, snapshot{}, model.NewStoreError("update task", err)
	}
	e.tasks[id] = next
	e.logger.Info("task updated", "task_id", id, "machine", next.Machine, "speed", next.Speed)

	if next.Machine != cur.Machine {
		e.startIdleLocked(ctx, e.clock.Now().UTC())
	}
	return e.tasks[id].Clone(), e.snapshotLocked(), nil
}

// Delete removes a task in any state. Removing a running task frees its
// machine, and the next queued task starts immediately.
func (e *Engine) Delete(ctx context.Context, id string) error {
	snap, err := e.delete(ctx, id)
	if err != nil {
		return err
	}
	e.publish(snap)
	return nil
}

func (e *Engine) delete(ctx context.Context, id string) (snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.tasks[id]
	if !ok {
		return snapshot{}, model.NewNotFoundError("task", id)
	}
	if err := e.store.DeleteTask(ctx, id); err != nil && model.CodeOf(err) != model.ErrNotFound {
		metrics.StoreErrorsTotal.WithLabelValues("command").Inc()
		return snapshot{}, model.NewStoreError("delete task", err)
	}
	delete(e.tasks, id)
	e.logger.Info("task deleted", "task_id", id, "machine", cur.Machine, "status", cur.Status.Kind)

	if cur.Status.IsRunning() {
		e.startIdleLocked(ctx, e.clock.Now().UTC())
	}
	return e.snapshotLocked(), nil
}

// Tick advances countdowns, completes finished tasks and starts queued
// ones on idle machines. Changes are committed in one store transaction;
// when the commit fails the table is left as it was and the next tick
// recomputes everything from the clock. A broadcast follows only when a
// task changed status; a countdown-only tick refreshes the publisher's
// latest table instead.
func (e *Engine) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.TickDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	snap, broadcast, err := e.tick(ctx)
	if err != nil || snap.version == 0 {
		return err
	}
	if broadcast {
		e.publish(snap)
	} else if r, ok := e.publisher.(Refresher); ok {
		r.Refresh(snap.version, snap.records)
	}
	return nil
}

// tick returns a zero snapshot when nothing changed. broadcast is false
// for a tick that only moved countdowns.
func (e *Engine) tick(ctx context.Context) (snapshot, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now().UTC()
	w := newWorkset(e.tasks)
	w.advance(now)
	w.startIdle(now)
	if len(w.changed) == 0 {
		return snapshot{}, false, nil
	}

	if err := e.store.UpdateTasks(ctx, w.changedTasks()); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("tick").Inc()
		return snapshot{}, false, model.NewStoreError("commit tick", err)
	}
	e.applyLocked(w)
	return e.snapshotLocked(), len(w.transitions) > 0, nil
}

// startIdleLocked runs an out-of-band resolver pass after a command. A
// failed commit leaves the queued tasks for the next tick.
func (e *Engine) startIdleLocked(ctx context.Context, now time.Time) {
	w := newWorkset(e.tasks)
	if w.startIdle(now) == 0 {
		return
	}
	if err := e.store.UpdateTasks(ctx, w.changedTasks()); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("command").Inc()
		e.logger.Error("start queued tasks", "code", model.ErrStore, "error", err)
		return
	}
	e.applyLocked(w)
}

func (e *Engine) applyLocked(w *workset) {
	e.tasks = w.tasks
	for _, tr := range w.transitions {
		metrics.TransitionsTotal.WithLabelValues(string(tr.to)).Inc()
		switch tr.to {
		case model.StatusRunning:
			e.logger.Info("task started", "task_id", tr.id, "machine", tr.machine)
		case model.StatusCompleted:
			e.logger.Info("task completed", "task_id", tr.id, "machine", tr.machine)
		}
	}
}

func (e *Engine) orderedLocked() []*model.Task {
	tasks := make([]*model.Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		tasks = append(tasks, t)
	}
	sortBySeq(tasks)
	return tasks
}

// snapshotLocked captures the table in creation order under a new version.
func (e *Engine) snapshotLocked() snapshot {
	e.version++
	tasks := e.orderedLocked()

	counts := map[model.StatusKind]int{}
	for _, t := range tasks {
		counts[t.Status.Kind]++
	}
	for _, k := range []model.StatusKind{model.StatusQueued, model.StatusRunning, model.StatusCompleted} {
		metrics.TasksByStatus.WithLabelValues(string(k)).Set(float64(counts[k]))
	}
	return snapshot{version: e.version, records: model.RecordsOf(tasks)}
}

func (e *Engine) publish(s snapshot) {
	if e.publisher != nil {
		e.publisher.Publish(s.version, s.records)
	}
}

// Snapshot returns the current table in creation order and the version of
// the last snapshot handed to the publisher.
func (e *Engine) Snapshot() (uint64, []model.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version, model.RecordsOf(e.orderedLocked())
}

// Tasks returns copies of all tasks in creation order.
func (e *Engine) Tasks() []*model.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks := e.orderedLocked()
	for i, t := range tasks {
		tasks[i] = t.Clone()
	}
	return tasks
}

// Get returns a copy of one task.
func (e *Engine) Get(id string) (*model.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Queues returns the derived per-machine view of the current table.
func (e *Engine) Queues() map[string]MachineQueue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ResolveQueues(e.orderedLocked())
}

func sortBySeq(tasks []*model.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Seq != tasks[j].Seq {
			return tasks[i].Seq < tasks[j].Seq
		}
		return tasks[i].ID < tasks[j].ID
	})
}
