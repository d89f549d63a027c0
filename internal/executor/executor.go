package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/roach88/milestone/internal/clock"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Tx is an open transaction. Statements are executed verbatim.
type Tx interface {
	Exec(ctx context.Context, sql string) error
	Query(ctx context.Context, sql string) ([]Row, []string, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Executor runs statement lists inside transactions against one database.
type Executor interface {
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Config selects and configures an executor.
type Config struct {
	// Kind is a registered executor kind, e.g. "sqlite" or "postgres".
	Kind string

	// DSN is passed to the driver unchanged.
	DSN string
}

// Factory opens an executor for a Config.
type Factory func(ctx context.Context, cfg Config) (Executor, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a factory available under kind. It panics when kind is
// empty, f is nil or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if kind == "" {
		panic("executor: Register with empty kind")
	}
	if f == nil {
		panic("executor: Register factory is nil")
	}
	if _, dup := factories[kind]; dup {
		panic("executor: Register called twice for kind " + kind)
	}
	factories[kind] = f
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Open opens an executor of cfg.Kind.
func Open(ctx context.Context, cfg Config) (Executor, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown executor kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	ex, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s executor: %w", cfg.Kind, err)
	}
	return ex, nil
}

// RunInTransaction runs fn inside a transaction. The transaction is rolled
// back when fn returns an error or panics, and committed otherwise. A panic
// is re-raised after rollback.
func RunInTransaction(ctx context.Context, ex Executor, fn func(Tx) error) (err error) {
	tx, err := ex.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ExecAll executes statements in order and reports the index of the first
// failure.
func ExecAll(ctx context.Context, tx Tx, stmts []string) error {
	for i, s := range stmts {
		if err := tx.Exec(ctx, s); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return nil
}

// QueryInt runs a single-row, single-column query and returns the value as
// an integer. NULL reads as zero.
func QueryInt(ctx context.Context, tx Tx, sql string) (int64, error) {
	rows, cols, err := tx.Query(ctx, sql)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 || len(cols) == 0 {
		return 0, fmt.Errorf("expected one row with one column, got %d rows", len(rows))
	}
	return ToInt64(rows[0][cols[0]])
}

// ToInt64 converts the integer representations drivers return.
func ToInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to int64", v)
}

// FormatValue renders a scanned value for display and comparison. NULL is
// "NULL" and timestamps use the batch time layout.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return clock.Format(x)
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}
