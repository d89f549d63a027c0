package harness

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/milestone/internal/compiler"
	"github.com/roach88/milestone/internal/dataset"
	"github.com/roach88/milestone/internal/ingestmode"
)

// PrincipleError is a milestoning principle the main table no longer
// satisfies after a step.
type PrincipleError struct {
	Principle string
	Table     string
	Detail    string
}

// Error implements the error interface.
func (e *PrincipleError) Error() string {
	return fmt.Sprintf("principle %s violated on %s: %s", e.Principle, e.Table, e.Detail)
}

// Principle names.
const (
	PrincipleSingleOpenRow      = "single_open_row"
	PrincipleIncreasingBatchIDs = "increasing_batch_ids"
	PrincipleContiguousValidity = "contiguous_validity"
)

// CheckPrinciples verifies the invariants every milestoned table keeps
// across batches:
//
//   - single_open_row: at most one open row per key (the primary key, plus
//     the validity start for bitemporal modes)
//   - increasing_batch_ids: batch ids recorded for the table strictly
//     increase in insertion order
//   - contiguous_validity: for from-only bitemporal modes, every open
//     interval that does not run to infinity ends where the next begins
//
// Tables that do not exist yet are skipped.
func CheckPrinciples(ctx context.Context, db *sql.DB, def *compiler.Definition) []error {
	main := def.Datasets.Main
	if ok, err := tableExists(ctx, db, main.Name); err != nil {
		return []error{err}
	} else if !ok {
		return nil
	}

	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	check(checkSingleOpenRow(ctx, db, def))
	check(checkIncreasingBatchIDs(ctx, db, def))
	if ingestmode.IsFromOnly(def.Mode) {
		check(checkContiguousValidity(ctx, db, def))
	}
	return errs
}

// milestoneKeys returns the columns identifying one open version.
func milestoneKeys(def *compiler.Definition) []string {
	keys := def.Datasets.Staging.Schema.PrimaryKeys()
	if v, ok := ingestmode.Validity(def.Mode); ok {
		from, through := ingestmode.ReferenceFields(v.Derivation)
		keys = slices.DeleteFunc(keys, func(k string) bool { return k == from || k == through })
		keys = append(keys, v.FromField)
	}
	return keys
}

// openPredicate matches rows still open in transaction time.
func openPredicate(def *compiler.Definition, alias string) string {
	tm := ingestmode.Milestoning(def.Mode)
	if _, out, ok := ingestmode.BatchIDFields(tm); ok {
		return fmt.Sprintf("%s.%s = %d", alias, out, dataset.InfiniteBatchID)
	}
	_, out, _ := ingestmode.DateTimeFields(tm)
	return fmt.Sprintf("%s.%s = '%s'", alias, out, dataset.InfiniteDateTime)
}

func checkSingleOpenRow(ctx context.Context, db *sql.DB, def *compiler.Definition) error {
	keys := milestoneKeys(def)
	if len(keys) == 0 {
		return nil
	}
	main := def.Datasets.Main.Ref()
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM (SELECT %s FROM %s m WHERE %s GROUP BY %s HAVING COUNT(*) > 1) dup",
		strings.Join(keys, ", "), main, openPredicate(def, "m"), strings.Join(keys, ", "))

	var n int64
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return fmt.Errorf("%s: %w", PrincipleSingleOpenRow, err)
	}
	if n > 0 {
		return &PrincipleError{
			Principle: PrincipleSingleOpenRow,
			Table:     main,
			Detail:    fmt.Sprintf("%d keys have more than one open row", n),
		}
	}
	return nil
}

func checkIncreasingBatchIDs(ctx context.Context, db *sql.DB, def *compiler.Definition) error {
	meta := metadataTable(def)
	if ok, err := tableExists(ctx, db, meta); err != nil || !ok {
		return err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE UPPER(%s) = UPPER(?) ORDER BY rowid",
		dataset.MetadataBatchID, meta, dataset.MetadataTableName)
	rows, err := db.QueryContext(ctx, query, def.Datasets.Main.Name)
	if err != nil {
		return fmt.Errorf("%s: %w", PrincipleIncreasingBatchIDs, err)
	}
	defer rows.Close()

	var prev int64
	for first := true; rows.Next(); first = false {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		if !first && id <= prev {
			return &PrincipleError{
				Principle: PrincipleIncreasingBatchIDs,
				Table:     meta,
				Detail:    fmt.Sprintf("batch id %d recorded after %d", id, prev),
			}
		}
		prev = id
	}
	return rows.Err()
}

func checkContiguousValidity(ctx context.Context, db *sql.DB, def *compiler.Definition) error {
	v, _ := ingestmode.Validity(def.Mode)
	keys := slices.DeleteFunc(milestoneKeys(def), func(k string) bool { return k == v.FromField })

	join := []string{fmt.Sprintf("n.%s = a.%s", v.FromField, v.ThroughField)}
	for _, k := range keys {
		join = append(join, fmt.Sprintf("n.%s = a.%s", k, k))
	}
	main := def.Datasets.Main.Ref()
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s a WHERE %s AND a.%s <> '%s' AND NOT EXISTS (SELECT 1 FROM %s n WHERE %s AND %s)",
		main, openPredicate(def, "a"), v.ThroughField, dataset.InfiniteDateTime,
		main, openPredicate(def, "n"), strings.Join(join, " AND "))

	var n int64
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return fmt.Errorf("%s: %w", PrincipleContiguousValidity, err)
	}
	if n > 0 {
		return &PrincipleError{
			Principle: PrincipleContiguousValidity,
			Table:     main,
			Detail:    fmt.Sprintf("%d open intervals end without a successor", n),
		}
	}
	return nil
}

func metadataTable(def *compiler.Definition) string {
	switch {
	case def.Datasets.Metadata != nil:
		return def.Datasets.Metadata.Ref()
	case def.Options.MetadataTable != "":
		return def.Options.MetadataTable
	}
	return dataset.DefaultMetadataTable
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int64
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE", name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
