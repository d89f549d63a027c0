package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	executed    []string
	committed   bool
	rolledBack  bool
	failOn      string
	rollbackErr error
}

func (f *fakeTx) Exec(_ context.Context, sql string) error {
	if sql == f.failOn {
		return errors.New("boom")
	}
	f.executed = append(f.executed, sql)
	return nil
}

func (f *fakeTx) Query(context.Context, string) ([]Row, []string, error) {
	return []Row{{"n": int64(4)}}, []string{"n"}, nil
}

func (f *fakeTx) Commit(context.Context) error { f.committed = true; return nil }

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return f.rollbackErr
}

type fakeExecutor struct{ tx *fakeTx }

func (f *fakeExecutor) BeginTx(context.Context) (Tx, error) { return f.tx, nil }
func (f *fakeExecutor) Close() error                        { return nil }

func TestRegister_Panics(t *testing.T) {
	noop := func(context.Context, Config) (Executor, error) { return nil, nil }

	assert.Panics(t, func() { Register("", noop) })
	assert.Panics(t, func() { Register("x-nil", nil) })

	Register("x-dup", noop)
	assert.Panics(t, func() { Register("x-dup", noop) })
	assert.Contains(t, Kinds(), "x-dup")
}

func TestOpen(t *testing.T) {
	Register("x-fake", func(context.Context, Config) (Executor, error) {
		return &fakeExecutor{tx: &fakeTx{}}, nil
	})
	Register("x-broken", func(context.Context, Config) (Executor, error) {
		return nil, errors.New("no route")
	})

	ex, err := Open(context.Background(), Config{Kind: "x-fake"})
	require.NoError(t, err)
	assert.NotNil(t, ex)

	_, err = Open(context.Background(), Config{Kind: "x-broken"})
	assert.EqualError(t, err, "open x-broken executor: no route")

	_, err = Open(context.Background(), Config{Kind: "nope"})
	assert.ErrorContains(t, err, `unknown executor kind "nope"`)
}

func TestRunInTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		tx := &fakeTx{}
		err := RunInTransaction(ctx, &fakeExecutor{tx: tx}, func(tx Tx) error {
			return ExecAll(ctx, tx, []string{"a", "b"})
		})
		require.NoError(t, err)
		assert.True(t, tx.committed)
		assert.False(t, tx.rolledBack)
		assert.Equal(t, []string{"a", "b"}, tx.executed)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		tx := &fakeTx{failOn: "b"}
		err := RunInTransaction(ctx, &fakeExecutor{tx: tx}, func(tx Tx) error {
			return ExecAll(ctx, tx, []string{"a", "b", "c"})
		})
		assert.EqualError(t, err, "statement 1: boom")
		assert.True(t, tx.rolledBack)
		assert.False(t, tx.committed)
		assert.Equal(t, []string{"a"}, tx.executed)
	})

	t.Run("joins rollback failure", func(t *testing.T) {
		tx := &fakeTx{failOn: "a", rollbackErr: errors.New("gone")}
		err := RunInTransaction(ctx, &fakeExecutor{tx: tx}, func(tx Tx) error {
			return ExecAll(ctx, tx, []string{"a"})
		})
		assert.ErrorContains(t, err, "boom")
		assert.ErrorContains(t, err, "rollback: gone")
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		tx := &fakeTx{}
		assert.PanicsWithValue(t, "kaboom", func() {
			_ = RunInTransaction(ctx, &fakeExecutor{tx: tx}, func(Tx) error { panic("kaboom") })
		})
		assert.True(t, tx.rolledBack)
		assert.False(t, tx.committed)
	})
}

func TestQueryInt(t *testing.T) {
	n, err := QueryInt(context.Background(), &fakeTx{}, "SELECT 4 as n")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{in: nil, want: 0},
		{in: int64(7), want: 7},
		{in: int32(7), want: 7},
		{in: 7, want: 7},
		{in: uint32(7), want: 7},
		{in: float64(7), want: 7},
		{in: []byte("12"), want: 12},
		{in: "12", want: 12},
		{in: "x", wantErr: true},
		{in: true, wantErr: true},
		{in: ^uint64(0), wantErr: true},
	}
	for _, tt := range tests {
		got, err := ToInt64(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{int64(3), "3"},
		{[]byte("abc"), "abc"},
		{"x", "x"},
		{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01-02 03:04:05"},
		{1.5, "1.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in), "%v", tt.in)
	}
}
