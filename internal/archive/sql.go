package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/nodeforge/flowengine/internal/state"
)

// dialect picks the schema DDL and upsert syntax for the underlying
// driver: database/sql abstracts the driver API, not SQL dialect, so
// SQLite/Postgres-style `ON CONFLICT` and MySQL's `ON DUPLICATE KEY
// UPDATE` can't share one statement.
type dialect string

const (
	dialectSQLite dialect = "sqlite"
	dialectMySQL  dialect = "mysql"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS run_archive (
	execution_id TEXT PRIMARY KEY,
	is_running   INTEGER NOT NULL,
	snapshot     TEXT NOT NULL
)`

const mysqlSchema = `CREATE TABLE IF NOT EXISTS run_archive (
	execution_id VARCHAR(191) PRIMARY KEY,
	is_running   TINYINT(1) NOT NULL,
	snapshot     LONGTEXT NOT NULL
)`

// SQLArchive persists run snapshots as JSON blobs in a single table. It
// is driver-agnostic at the database/sql API level: callers open the
// *sql.DB with whichever driver they imported (modernc.org/sqlite for a
// local file, github.com/go-sql-driver/mysql for a shared server) via
// OpenSQLite/OpenMySQL, which select the matching schema and DML.
type SQLArchive struct {
	db      *sql.DB
	dialect dialect
}

// schemaFor returns the CREATE TABLE statement for d.
func schemaFor(d dialect) string {
	if d == dialectMySQL {
		return mysqlSchema
	}
	return sqliteSchema
}

// upsertFor returns the insert-or-update statement for d.
func upsertFor(d dialect) string {
	if d == dialectMySQL {
		return `
			INSERT INTO run_archive (execution_id, is_running, snapshot) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE is_running = VALUES(is_running), snapshot = VALUES(snapshot)
		`
	}
	return `
		INSERT INTO run_archive (execution_id, is_running, snapshot) VALUES (?, ?, ?)
		ON CONFLICT(execution_id) DO UPDATE SET is_running = excluded.is_running, snapshot = excluded.snapshot
	`
}

// NewSQLArchive wraps an already-open db for the given dialect and
// ensures the archive table exists.
func NewSQLArchive(ctx context.Context, db *sql.DB, d dialect) (*SQLArchive, error) {
	if _, err := db.ExecContext(ctx, schemaFor(d)); err != nil {
		return nil, fmt.Errorf("archive: create schema: %w", err)
	}
	return &SQLArchive{db: db, dialect: d}, nil
}

// OpenSQLite opens a modernc.org/sqlite-backed archive at path (use
// ":memory:" for an ephemeral one).
func OpenSQLite(ctx context.Context, path string) (*SQLArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open sqlite: %w", err)
	}
	return NewSQLArchive(ctx, db, dialectSQLite)
}

// OpenMySQL opens a github.com/go-sql-driver/mysql-backed archive using
// dsn (see that driver's DSN format).
func OpenMySQL(ctx context.Context, dsn string) (*SQLArchive, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open mysql: %w", err)
	}
	return NewSQLArchive(ctx, db, dialectMySQL)
}

func (a *SQLArchive) Save(ctx context.Context, snap state.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("archive: marshal snapshot: %w", err)
	}

	running := 0
	if snap.IsRunning {
		running = 1
	}

	_, err = a.db.ExecContext(ctx, upsertFor(a.dialect), snap.ExecutionID, running, payload)
	if err != nil {
		return fmt.Errorf("archive: save %q: %w", snap.ExecutionID, err)
	}
	return nil
}

func (a *SQLArchive) Load(ctx context.Context, executionID string) (state.Snapshot, error) {
	var payload []byte
	err := a.db.QueryRowContext(ctx, `SELECT snapshot FROM run_archive WHERE execution_id = ?`, executionID).Scan(&payload)
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("archive: load %q: %w", executionID, err)
	}

	var snap state.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return state.Snapshot{}, fmt.Errorf("archive: unmarshal %q: %w", executionID, err)
	}
	return snap, nil
}

func (a *SQLArchive) List(ctx context.Context) ([]RunSummary, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT snapshot FROM run_archive`)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		var snap state.Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("archive: unmarshal: %w", err)
		}
		out = append(out, summarize(snap))
	}
	return out, rows.Err()
}

// Close releases the underlying connection pool.
func (a *SQLArchive) Close() error {
	return a.db.Close()
}
