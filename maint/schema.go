package maint

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// OpenDB opens an existing SQLite database for a direct-store task. It
// never creates the file: a missing database is an error.
func OpenDB(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return db, nil
}

// ColumnSpec describes a column to add to an existing table.
type ColumnSpec struct {
	Table      string
	Column     string
	Definition string // type and constraints, e.g. "TEXT DEFAULT 'published'"
	Backfill   string // optional statement that fills the column in existing rows
	Pending    string // counts the rows Backfill still has to fill; required with Backfill
}

// StatusColumn adds the publication status to portfolio projects and marks
// every existing row as published.
var StatusColumn = ColumnSpec{
	Table:      "portfolio_projects",
	Column:     "status",
	Definition: "TEXT DEFAULT 'published'",
	Backfill:   "UPDATE portfolio_projects SET status = 'published' WHERE status IS NULL",
	Pending:    "SELECT COUNT(*) FROM portfolio_projects WHERE status IS NULL",
}

// ScreenshotColumn adds the screenshot URL to portfolio projects.
var ScreenshotColumn = ColumnSpec{
	Table:      "portfolio_projects",
	Column:     "screenshot_url",
	Definition: "TEXT",
}

func (c ColumnSpec) String() string {
	return c.Table + "." + c.Column
}

// AddColumn returns a task that adds the described column unless it is
// already there, then runs the backfill while rows are still pending. A
// column that exists with pending rows is backfilled again, so a run whose
// backfill failed is finished by the next one.
func AddColumn(db *sql.DB, col ColumnSpec) Task {
	return Task{
		Name:  "add-column " + col.String(),
		Short: fmt.Sprintf("Add %s %s", col, col.Definition),
		Check: func(ctx context.Context) (bool, string, error) {
			exists, err := columnExists(ctx, db, col.Table, col.Column)
			if err != nil || !exists {
				return false, "", err
			}
			pending, err := col.pending(ctx, db)
			if err != nil {
				return false, "", err
			}
			return pending == 0, fmt.Sprintf("column %s already exists", col), nil
		},
		Action: func(ctx context.Context, r *Report) error {
			exists, err := columnExists(ctx, db, col.Table, col.Column)
			if err != nil {
				return err
			}
			if !exists {
				stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(col.Table), quoteIdent(col.Column), col.Definition)
				if r.DryRun {
					r.Skip("would run: %s", stmt)
				} else {
					if _, err := db.ExecContext(ctx, stmt); err != nil {
						return fmt.Errorf("add column %s: %w", col, err)
					}
					r.Success("Added column %s", col)
				}
			}
			if col.Backfill == "" {
				return nil
			}
			if r.DryRun {
				r.Skip("would run: %s", col.Backfill)
				return nil
			}
			res, err := db.ExecContext(ctx, col.Backfill)
			if err != nil {
				return fmt.Errorf("backfill %s: %w", col, err)
			}
			n, _ := res.RowsAffected()
			r.Success("Backfilled %d rows", n)
			return nil
		},
	}
}

func (c ColumnSpec) pending(ctx context.Context, db *sql.DB) (int, error) {
	if c.Pending == "" {
		return 0, nil
	}
	var n int
	if err := db.QueryRowContext(ctx, c.Pending).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending %s: %w", c, err)
	}
	return n, nil
}

// columnExists reads PRAGMA table_info. A table that does not exist is an error.
func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	if err := requireTable(ctx, db, table); err != nil {
		return false, err
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return false, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()
	found := false
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			found = true
		}
	}
	return found, rows.Err()
}

func requireTable(ctx context.Context, db *sql.DB, table string) error {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return fmt.Errorf("look up table %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("table %s does not exist", table)
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + s + `"`
}
