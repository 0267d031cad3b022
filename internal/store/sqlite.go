package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/shopfloor/internal/logging"
	"github.com/me/shopfloor/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Every connection to ":memory:" is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.Component(logger, "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

const taskColumns = `id, seq, created_at, machine, material, speed, duration_seconds,
	status, remaining_seconds, expected_completion_at`

// orderBy maps sortable columns to SQL. Status follows the life cycle.
var orderBy = map[string]string{
	model.SortByID:                   "id",
	model.SortByCreatedAt:            "created_at",
	model.SortByMachine:              "machine",
	model.SortByMaterial:             "material",
	model.SortBySpeed:                "speed",
	model.SortByStatus:               "CASE status WHEN 'queued' THEN 0 WHEN 'running' THEN 1 ELSE 2 END",
	model.SortByRemainingSeconds:     "remaining_seconds",
	model.SortByExpectedCompletionAt: "COALESCE(expected_completion_at, '')",
}

// timeLayout keeps a fixed number of fractional digits so that stored
// timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	s.logger.Debug("sql", "op", "insert", "table", "tasks", "id", task.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Seq, formatTime(task.CreatedAt),
		task.Machine, task.Material, task.Speed, task.DurationSeconds,
		string(task.Status.Kind), task.Status.Remaining,
		formatOptTime(task.ExpectedCompletionAt),
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	s.logger.Debug("sql", "op", "select", "table", "tasks", "id", id)
	return s.scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
}

func (s *SQLiteStore) ListTasks(ctx context.Context, opts model.ListOptions) ([]*model.Task, error) {
	opts.Normalize()
	s.logger.Debug("sql", "op", "list", "table", "tasks", "sort", opts.SortBy, "desc", opts.Desc)

	dir := "ASC"
	if opts.Desc {
		dir = "DESC"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY `+orderBy[opts.SortBy]+` `+dir+`, seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanTasks(rows)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) updateTask(ctx context.Context, ex execer, task *model.Task) error {
	result, err := ex.ExecContext(ctx,
		`UPDATE tasks SET machine=?, material=?, speed=?, status=?,
		 remaining_seconds=?, expected_completion_at=? WHERE id=?`,
		task.Machine, task.Material, task.Speed,
		string(task.Status.Kind), task.Status.Remaining,
		formatOptTime(task.ExpectedCompletionAt), task.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return model.NewNotFoundError("task", task.ID)
	}
	return nil
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, task *model.Task) error {
	s.logger.Debug("sql", "op", "update", "table", "tasks", "id", task.ID)
	return s.updateTask(ctx, s.db, task)
}

func (s *SQLiteStore) UpdateTasks(ctx context.Context, tasks []*model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	s.logger.Debug("sql", "op", "update_batch", "table", "tasks", "count", len(tasks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, task := range tasks {
		if err := s.updateTask(ctx, tx, task); err != nil {
			tx.Rollback()
			return fmt.Errorf("update task %s: %w", task.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "tasks", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return model.NewNotFoundError("task", id)
	}
	return nil
}

func (s *SQLiteStore) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM tasks`).Scan(&seq)
	return seq, err
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanTask(row scanner) (*model.Task, error) {
	var task model.Task
	var createdAt, status string
	var expected *string

	err := row.Scan(&task.ID, &task.Seq, &createdAt, &task.Machine, &task.Material,
		&task.Speed, &task.DurationSeconds, &status, &task.Status.Remaining, &expected)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task.Status.Kind = model.StatusKind(status)
	if !task.Status.Kind.Valid() {
		return nil, fmt.Errorf("task %s: unknown status %q", task.ID, status)
	}
	if !task.Status.IsRunning() {
		task.Status.Remaining = 0
	}
	task.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if expected != nil {
		t, _ := time.Parse(time.RFC3339Nano, *expected)
		task.ExpectedCompletionAt = &t
	}
	return &task, nil
}

func (s *SQLiteStore) scanTasks(rows *sql.Rows) ([]*model.Task, error) {
	var tasks []*model.Task
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
