package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for the task table.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id                     TEXT PRIMARY KEY,
		created_at             TEXT NOT NULL,
		machine                TEXT NOT NULL,
		material               TEXT NOT NULL DEFAULT '',
		speed                  INTEGER NOT NULL DEFAULT 0,
		duration_seconds       INTEGER NOT NULL DEFAULT 0,
		status                 TEXT NOT NULL DEFAULT 'queued',
		remaining_seconds      INTEGER NOT NULL DEFAULT 0,
		expected_completion_at TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_machine_status ON tasks(machine, status)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	// Creation sequence; databases written before it existed fall back to
	// rowid order, which matched insertion order.
	{
		table:    "tasks",
		column:   "seq",
		alterSQL: "ALTER TABLE tasks ADD COLUMN seq INTEGER NOT NULL DEFAULT 0",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_tasks_seq ON tasks(seq)",
	},
}

// backfill statements run after the alters on every migrate.
var backfill = []string{
	`UPDATE tasks SET seq = rowid WHERE seq = 0`,
}

// migrate executes all schema DDL statements, alter migrations, and backfills.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	// Execute ALTER TABLE statements idempotently.
	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	for _, stmt := range backfill {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
