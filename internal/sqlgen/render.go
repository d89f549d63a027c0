package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/milestone/internal/dataset"
	lp "github.com/roach88/milestone/internal/logicalplan"
)

// Renderer turns logical plan statements into SQL text for one sink.
type Renderer struct {
	Sink RelationalSink
	Case CaseConversion
}

// NewRenderer creates a Renderer.
func NewRenderer(sink RelationalSink, cc CaseConversion) *Renderer {
	return &Renderer{Sink: sink, Case: cc}
}

// Render validates stmt and renders it.
func (r *Renderer) Render(stmt lp.Statement) (string, error) {
	if r.Sink == nil {
		return "", fmt.Errorf("renderer has no sink")
	}
	if err := lp.Validate(stmt).Err(); err != nil {
		return "", err
	}
	w := &writer{sink: r.Sink, conv: r.Case.converter()}
	w.statement(stmt)
	if w.err != nil {
		return "", w.err
	}
	return w.b.String(), nil
}

// RenderAll renders statements in order, stopping at the first failure.
func (r *Renderer) RenderAll(stmts []lp.Statement) ([]string, error) {
	out := make([]string, 0, len(stmts))
	for i, s := range stmts {
		sql, err := r.Render(s)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		out = append(out, sql)
	}
	return out, nil
}

// writer accumulates SQL. The first error sticks and later writes are
// ignored.
type writer struct {
	b    strings.Builder
	sink RelationalSink
	conv func(string) string
	err  error
}

func (w *writer) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf(format, args...)
	}
}

func (w *writer) str(s string) { w.b.WriteString(s) }

func (w *writer) ident(name string) { w.str(w.sink.QuoteIdentifier(w.conv(name))) }

func (w *writer) alias(a string) { w.str(w.conv(a)) }

func (w *writer) literal(s string) {
	w.str("'" + strings.ReplaceAll(s, "'", "''") + "'")
}

func (w *writer) tableName(t lp.TableRef) {
	if t.Database != "" {
		w.ident(t.Database)
		w.str(".")
	}
	w.ident(t.Name)
}

func (w *writer) tableWithAlias(t lp.TableRef) {
	w.tableName(t)
	if t.Alias != "" {
		w.str(" as ")
		w.alias(t.Alias)
	}
}

func (w *writer) statement(s lp.Statement) {
	switch st := s.(type) {
	case lp.Create:
		w.create(st)
	case lp.Insert:
		w.insert(st)
	case lp.Update:
		w.update(st)
	case lp.Delete:
		w.delete(st)
	case lp.Drop:
		w.drop(st)
	case lp.Query:
		w.selection(st.Select)
	default:
		w.fail("unsupported statement type: %T", s)
	}
}

func (w *writer) create(c lp.Create) {
	if c.IfNotExists && w.sink.CreateStyle() == CreateObjectIDGuard {
		name := c.Table.Name
		if c.Table.Database != "" {
			name = c.Table.Database + "." + name
		}
		w.str("IF OBJECT_ID(N")
		w.literal(w.conv(name))
		w.str(", N'U') IS NULL ")
	}
	w.str("CREATE TABLE ")
	if c.IfNotExists && w.sink.CreateStyle() == CreateIfNotExists {
		w.str("IF NOT EXISTS ")
	}
	w.tableName(c.Table)
	w.str("(")
	var keys []string
	for i, f := range c.Fields {
		if i > 0 {
			w.str(",")
		}
		w.field(f)
		if f.PrimaryKey {
			keys = append(keys, f.Name)
		}
	}
	if len(keys) > 0 {
		w.str(",PRIMARY KEY (")
		for i, k := range keys {
			if i > 0 {
				w.str(", ")
			}
			w.ident(k)
		}
		w.str(")")
	}
	w.str(")")
}

func (w *writer) field(f dataset.Field) {
	w.ident(f.Name)
	w.str(" ")
	w.str(w.sink.DataType(f.Type))
	if f.PrimaryKey || f.NotNull {
		w.str(" NOT NULL")
	}
}

func (w *writer) insert(ins lp.Insert) {
	w.str("INSERT INTO ")
	w.tableName(ins.Table)
	w.str(" (")
	for i, c := range ins.Columns {
		if i > 0 {
			w.str(", ")
		}
		w.ident(c)
	}
	w.str(") ")
	paren := w.sink.ParenthesizeInsertSelect()
	if paren {
		w.str("(")
	}
	w.selection(ins.Select)
	if paren {
		w.str(")")
	}
}

func (w *writer) update(u lp.Update) {
	style := w.sink.UpdateStyle()
	w.str("UPDATE ")
	if style == UpdateFromAlias && u.Table.Alias != "" {
		w.alias(u.Table.Alias)
	} else {
		w.tableWithAlias(u.Table)
	}
	w.str(" SET ")
	for i, a := range u.Set {
		if i > 0 {
			w.str(",")
		}
		if style == UpdateQualifiedSet && u.Table.Alias != "" {
			w.alias(u.Table.Alias)
			w.str(".")
		}
		w.ident(a.Column)
		w.str(" = ")
		w.value(a.Value)
	}
	if style == UpdateFromAlias && u.Table.Alias != "" {
		w.str(" FROM ")
		w.tableWithAlias(u.Table)
	}
	w.where(u.Where)
}

func (w *writer) delete(d lp.Delete) {
	w.str("DELETE ")
	if w.sink.DeleteStyle() == DeleteAliasFrom && d.Table.Alias != "" {
		w.alias(d.Table.Alias)
		w.str(" ")
	}
	w.str("FROM ")
	w.tableWithAlias(d.Table)
	w.where(d.Where)
}

func (w *writer) drop(d lp.Drop) {
	w.str("DROP TABLE ")
	if d.IfExists {
		w.str("IF EXISTS ")
	}
	w.tableName(d.Table)
	if d.Cascade && w.sink.SupportsDropCascade() {
		w.str(" CASCADE")
	}
}

func (w *writer) where(c lp.Condition) {
	if c == nil {
		return
	}
	w.str(" WHERE ")
	w.condition(c)
}

func (w *writer) selection(s lp.Selection) {
	w.str("SELECT ")
	if len(s.Fields) == 0 {
		w.str("*")
	}
	for i, f := range s.Fields {
		if i > 0 {
			w.str(",")
		}
		w.value(f)
	}
	if s.Source != nil {
		w.str(" FROM ")
		w.source(s.Source)
	}
	w.where(s.Where)
	if len(s.GroupBy) > 0 {
		w.str(" GROUP BY ")
		for i, g := range s.GroupBy {
			if i > 0 {
				w.str(", ")
			}
			w.value(g)
		}
	}
}

func (w *writer) source(src lp.Source) {
	switch s := src.(type) {
	case lp.TableRef:
		w.tableWithAlias(s)
	case lp.Selection:
		w.str("(")
		w.selection(s)
		w.str(") as ")
		w.alias(s.Alias)
	case lp.Join:
		w.source(s.Left)
		switch s.Kind {
		case lp.InnerJoin:
			w.str(" INNER JOIN ")
		case lp.LeftOuterJoin:
			w.str(" LEFT OUTER JOIN ")
		default:
			w.fail("unsupported join kind: %d", s.Kind)
		}
		if _, nested := s.Right.(lp.Join); nested {
			w.str("(")
			w.source(s.Right)
			w.str(")")
		} else {
			w.source(s.Right)
		}
		w.str(" ON ")
		w.condition(s.On)
	default:
		w.fail("unsupported source type: %T", src)
	}
}

func (w *writer) values(vs []lp.Value, sep string) {
	for i, v := range vs {
		if i > 0 {
			w.str(sep)
		}
		w.value(v)
	}
}

func (w *writer) value(v lp.Value) {
	switch x := v.(type) {
	case lp.Column:
		if x.Qualifier != "" {
			w.alias(x.Qualifier)
			w.str(".")
		}
		w.ident(x.Name)
	case lp.Star:
		if x.Qualifier != "" {
			w.alias(x.Qualifier)
			w.str(".")
		}
		w.str("*")
	case lp.String:
		w.literal(x.Value)
	case lp.Number:
		w.str(strconv.FormatInt(x.Value, 10))
	case lp.TableName:
		w.literal(w.conv(x.Value))
	case lp.Placeholder:
		w.str(x.Token)
	case lp.Func:
		w.str(string(x.Name))
		w.str("(")
		w.values(x.Args, ",")
		w.str(")")
	case lp.CurrentTimestamp:
		w.str(w.sink.CurrentTimestamp())
	case lp.Aliased:
		w.value(x.Value)
		w.str(" as ")
		w.ident(x.Alias)
	case lp.Subquery:
		w.str("(")
		w.selection(x.Select)
		w.str(")")
	case lp.Arith:
		w.value(x.Left)
		w.str(string(x.Op))
		w.value(x.Right)
	case lp.Case:
		w.str("CASE WHEN ")
		w.condition(x.When)
		w.str(" THEN ")
		w.value(x.Then)
		w.str(" ELSE ")
		w.value(x.Else)
		w.str(" END")
	case lp.DenseRank:
		w.str("DENSE_RANK() OVER (")
		if len(x.PartitionBy) > 0 {
			w.str("PARTITION BY ")
			w.values(x.PartitionBy, ",")
			w.str(" ")
		}
		w.str("ORDER BY ")
		for i, o := range x.OrderByDesc {
			if i > 0 {
				w.str(",")
			}
			w.value(o)
			w.str(" DESC")
		}
		w.str(")")
	default:
		w.fail("unsupported value type: %T", v)
	}
}

func (w *writer) condition(c lp.Condition) {
	switch x := c.(type) {
	case lp.Compare:
		w.value(x.Left)
		w.str(" " + string(x.Op) + " ")
		w.value(x.Right)
	case lp.And:
		w.group(x.Conditions, " AND ")
	case lp.Or:
		w.group(x.Conditions, " OR ")
	case lp.Not:
		w.str("NOT (")
		w.condition(x.Condition)
		w.str(")")
	case lp.Exists:
		w.str("EXISTS (")
		w.selection(x.Select)
		w.str(")")
	case lp.In:
		w.value(x.Value)
		if x.Negate {
			w.str(" NOT")
		}
		w.str(" IN (")
		w.values(x.List, ",")
		w.str(")")
	case lp.InSelect:
		w.value(x.Value)
		if x.Negate {
			w.str(" NOT")
		}
		w.str(" IN (")
		w.selection(x.Select)
		w.str(")")
	case lp.IsNull:
		w.value(x.Value)
		if x.Negate {
			w.str(" IS NOT NULL")
		} else {
			w.str(" IS NULL")
		}
	default:
		w.fail("unsupported condition type: %T", c)
	}
}

// group renders a single operand bare and parenthesizes each operand
// otherwise.
func (w *writer) group(conds []lp.Condition, sep string) {
	if len(conds) == 1 {
		w.condition(conds[0])
		return
	}
	for i, c := range conds {
		if i > 0 {
			w.str(sep)
		}
		w.str("(")
		w.condition(c)
		w.str(")")
	}
}
