package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/milestone/internal/executor"
	"github.com/roach88/milestone/internal/executor/sqlexec"
)

// DB is a sqlite database that fails the test on any error. It is closed
// when the test ends.
type DB struct {
	*sqlexec.DB
	t testing.TB
}

// OpenSQLite opens a fresh private in-memory database.
func OpenSQLite(t testing.TB) *DB {
	t.Helper()
	return OpenSQLiteFile(t, ":memory:")
}

// OpenSQLiteFile opens the database file at path, for tests that share it
// with another connection.
func OpenSQLiteFile(t testing.TB, path string) *DB {
	t.Helper()
	db, err := sqlexec.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &DB{DB: db, t: t}
}

// Exec runs each statement outside any transaction.
func (d *DB) Exec(stmts ...string) {
	d.t.Helper()
	for _, s := range stmts {
		_, err := d.DB.DB().Exec(s)
		require.NoError(d.t, err, s)
	}
}

// Rows renders every result row as its values joined by "|", using
// executor.FormatValue for each value.
func (d *DB) Rows(query string) []string {
	d.t.Helper()
	rs, err := d.DB.DB().Query(query)
	require.NoError(d.t, err, query)
	defer rs.Close()

	cols, err := rs.Columns()
	require.NoError(d.t, err)
	var out []string
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		require.NoError(d.t, rs.Scan(ptrs...))
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = executor.FormatValue(v)
		}
		out = append(out, strings.Join(parts, "|"))
	}
	require.NoError(d.t, rs.Err())
	return out
}

// Count runs a single-value integer query.
func (d *DB) Count(query string) int64 {
	d.t.Helper()
	var n int64
	require.NoError(d.t, d.DB.DB().QueryRow(query).Scan(&n), query)
	return n
}

// TableExists reports whether a table called name exists.
func (d *DB) TableExists(name string) bool {
	d.t.Helper()
	return d.Count(fmt.Sprintf(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = '%s'`, name)) > 0
}
