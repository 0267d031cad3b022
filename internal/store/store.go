package store

import (
	"context"

	"github.com/me/shopfloor/pkg/model"
)

// Store defines the persistence layer for tasks.
type Store interface {
	// CreateTask inserts a new task.
	CreateTask(ctx context.Context, task *model.Task) error
	// GetTask returns the task, or nil and no error when it does not exist.
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// ListTasks scans the whole table in the requested order.
	ListTasks(ctx context.Context, opts model.ListOptions) ([]*model.Task, error)
	// UpdateTask overwrites the mutable fields of one task.
	UpdateTask(ctx context.Context, task *model.Task) error
	// UpdateTasks overwrites several tasks in one transaction.
	UpdateTasks(ctx context.Context, tasks []*model.Task) error
	// DeleteTask removes a task. Missing ids return a NOT_FOUND APIError.
	DeleteTask(ctx context.Context, id string) error
	// MaxSeq returns the highest creation sequence number, 0 when empty.
	MaxSeq(ctx context.Context) (int64, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
