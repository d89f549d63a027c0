package harness

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/milestone/internal/executor"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Query    string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Query: %s\n", e.Query)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(ctx context.Context, db *sql.DB, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(ctx, db, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func evaluate(ctx context.Context, db *sql.DB, a Assertion) error {
	switch a.Type {
	case AssertRows:
		return assertRows(ctx, db, a)
	case AssertCount:
		return assertCount(ctx, db, a)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

// assertRows compares the rendered result rows with the expected ones, in
// order.
func assertRows(ctx context.Context, db *sql.DB, a Assertion) error {
	got, err := QueryRows(ctx, db, a.Query)
	if err != nil {
		return err
	}
	want := a.Rows
	if want == nil {
		want = []string{}
	}
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertRows,
		Query:    a.Query,
		Expected: fmt.Sprintf("%q", want),
		Actual:   fmt.Sprintf("%q", got),
	}
}

func assertCount(ctx context.Context, db *sql.DB, a Assertion) error {
	var raw any
	if err := db.QueryRowContext(ctx, a.Query).Scan(&raw); err != nil {
		return fmt.Errorf("query %q: %w", a.Query, err)
	}
	n, err := executor.ToInt64(raw)
	if err != nil {
		return err
	}
	if n == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Query:    a.Query,
		Expected: fmt.Sprintf("%d", *a.Count),
		Actual:   fmt.Sprintf("%d", n),
	}
}

// QueryRows runs query and renders each row as its values joined by "|".
// NULL renders as "NULL" and timestamps in the batch time layout.
func QueryRows(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rs, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}
	out := []string{}
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = executor.FormatValue(v)
		}
		out = append(out, strings.Join(parts, "|"))
	}
	return out, rs.Err()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
