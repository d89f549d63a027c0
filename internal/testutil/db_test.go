package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDB(t *testing.T) {
	db := OpenSQLite(t)
	assert.False(t, db.TableExists("t"))

	db.Exec(`CREATE TABLE t (a INTEGER, b VARCHAR(8), c DATETIME)`,
		`INSERT INTO t VALUES (1, 'x', '2024-01-01 02:00:00'), (2, NULL, NULL)`)

	assert.True(t, db.TableExists("t"))
	assert.Equal(t, int64(2), db.Count(`SELECT COUNT(*) FROM t`))
	assert.Equal(t, []string{"1|x|2024-01-01 02:00:00", "2|NULL|NULL"}, db.Rows(`SELECT a, b, c FROM t ORDER BY a`))
	assert.Nil(t, db.Rows(`SELECT a FROM t WHERE a > 2`))
}

func TestDB_Isolated(t *testing.T) {
	a, b := OpenSQLite(t), OpenSQLite(t)
	a.Exec(`CREATE TABLE only_a (x INTEGER)`)
	assert.False(t, b.TableExists("only_a"))
}

func TestOpenSQLiteFile_Shared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a := OpenSQLiteFile(t, path)
	a.Exec(`CREATE TABLE shared (x INTEGER)`, `INSERT INTO shared VALUES (1)`)

	b := OpenSQLiteFile(t, path)
	assert.Equal(t, int64(1), b.Count(`SELECT COUNT(*) FROM shared`))
}
