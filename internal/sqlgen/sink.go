package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/milestone/internal/dataset"
)

// UpdateStyle selects how UPDATE statements with an aliased target render.
type UpdateStyle int

const (
	// UpdateQualifiedSet renders UPDATE "t" as a SET a."c" = v WHERE ...
	UpdateQualifiedSet UpdateStyle = iota
	// UpdateUnqualifiedSet renders UPDATE "t" as a SET "c" = v WHERE ...
	UpdateUnqualifiedSet
	// UpdateFromAlias renders UPDATE a SET "c" = v FROM "t" as a WHERE ...
	UpdateFromAlias
)

// DeleteStyle selects how DELETE statements with an aliased target render.
type DeleteStyle int

const (
	// DeleteFromAlias renders DELETE FROM "t" as a WHERE ...
	DeleteFromAlias DeleteStyle = iota
	// DeleteAliasFrom renders DELETE a FROM "t" as a WHERE ...
	DeleteAliasFrom
)

// CreateStyle selects how an idempotent CREATE TABLE renders.
type CreateStyle int

const (
	// CreateIfNotExists renders CREATE TABLE IF NOT EXISTS "t"(...)
	CreateIfNotExists CreateStyle = iota
	// CreateObjectIDGuard renders IF OBJECT_ID(N't', N'U') IS NULL CREATE TABLE t(...)
	CreateObjectIDGuard
)

// RelationalSink describes the SQL capabilities of a target database. The
// renderer asks the sink for every dialect-specific decision; the logical
// plan stays the same for all sinks.
type RelationalSink interface {
	Name() string
	QuoteIdentifier(name string) string
	DataType(ft dataset.FieldType) string
	CurrentTimestamp() string
	UpdateStyle() UpdateStyle
	DeleteStyle() DeleteStyle
	CreateStyle() CreateStyle
	ParenthesizeInsertSelect() bool
	SupportsDropCascade() bool
}

// dialect is the table-driven RelationalSink used by every built-in sink.
type dialect struct {
	name        string
	quoteOpen   string
	quoteClose  string
	types       map[dataset.DataType]string
	unsized     map[dataset.DataType]string
	currentTS   string
	update      UpdateStyle
	del         DeleteStyle
	create      CreateStyle
	parenSelect bool
	dropCascade bool
}

func (d *dialect) Name() string { return d.name }

func (d *dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.quoteClose, d.quoteClose+d.quoteClose)
	return d.quoteOpen + escaped + d.quoteClose
}

// DataType maps a field type to the dialect's type name. Length and scale are
// appended when present; unsized types fall back to the dialect's default
// size when it has one.
func (d *dialect) DataType(ft dataset.FieldType) string {
	name, ok := d.types[ft.Type]
	if !ok {
		name = string(ft.Type)
	}
	switch {
	case ft.Length != nil && ft.Scale != nil:
		return fmt.Sprintf("%s(%d,%d)", name, *ft.Length, *ft.Scale)
	case ft.Length != nil:
		return fmt.Sprintf("%s(%d)", name, *ft.Length)
	}
	if sized, ok := d.unsized[ft.Type]; ok {
		return sized
	}
	return name
}

func (d *dialect) CurrentTimestamp() string       { return d.currentTS }
func (d *dialect) UpdateStyle() UpdateStyle       { return d.update }
func (d *dialect) DeleteStyle() DeleteStyle       { return d.del }
func (d *dialect) CreateStyle() CreateStyle       { return d.create }
func (d *dialect) ParenthesizeInsertSelect() bool { return d.parenSelect }
func (d *dialect) SupportsDropCascade() bool      { return d.dropCascade }

// Lookup returns the built-in sink registered under name (case-insensitive).
func Lookup(name string) (RelationalSink, error) {
	if d, ok := sinks[strings.ToLower(strings.TrimSpace(name))]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("unknown sink %q (available: %s)", name, strings.Join(SinkNames(), ", "))
}

// SinkNames lists the built-in sinks in sorted order.
func SinkNames() []string {
	names := make([]string, 0, len(sinks))
	for n := range sinks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
