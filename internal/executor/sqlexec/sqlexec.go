// Package sqlexec implements executor.Executor on database/sql for the
// sqlite, sqlserver and duckdb kinds.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/roach88/milestone/internal/executor"
)

// Executor kinds registered by this package.
const (
	KindSQLite    = "sqlite"
	KindSQLServer = "sqlserver"
	KindDuckDB    = "duckdb"
)

func init() {
	executor.Register(KindSQLite, func(ctx context.Context, cfg executor.Config) (executor.Executor, error) {
		return OpenSQLite(ctx, cfg.DSN)
	})
	executor.Register(KindSQLServer, func(ctx context.Context, cfg executor.Config) (executor.Executor, error) {
		return open(ctx, "sqlserver", cfg.DSN)
	})
	executor.Register(KindDuckDB, func(ctx context.Context, cfg executor.Config) (executor.Executor, error) {
		return open(ctx, "duckdb", cfg.DSN)
	})
}

// DB is a database/sql backed executor.
type DB struct {
	db *sql.DB
}

var _ executor.Executor = (*DB)(nil)

// OpenSQLite opens a SQLite database. ":memory:" gives a private in-memory
// database that lives as long as the executor.
//
// The database is configured with:
//   - a single connection, so every statement sees the same database
//   - a 5-second busy timeout for lock contention
//   - WAL mode for file databases
func OpenSQLite(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer at a time; an in-memory database is
	// also private to its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if dsn != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	return &DB{db: db}, nil
}

func open(ctx context.Context, driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return &DB{db: db}, nil
}

// New wraps an already opened database.
func New(db *sql.DB) *DB {
	return &DB{db: db}
}

// DB returns the underlying sql.DB.
func (d *DB) DB() *sql.DB {
	return d.db
}

// BeginTx starts a transaction.
func (d *DB) BeginTx(ctx context.Context) (executor.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, stmt string) error {
	_, err := t.tx.ExecContext(ctx, stmt)
	return err
}

func (t *sqlTx) Query(ctx context.Context, stmt string) ([]executor.Row, []string, error) {
	rows, err := t.tx.QueryContext(ctx, stmt)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out []executor.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(executor.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return out, cols, nil
}

func (t *sqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }
