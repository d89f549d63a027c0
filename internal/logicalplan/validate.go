package logicalplan

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationResult lists the structural problems found in a statement.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	Problems []string
}

// Err folds the problems into a single error, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return errors.New("invalid logical plan: " + strings.Join(r.Problems, "; "))
}

// Validate checks that a statement is well-formed enough to render:
//  1. every table reference has a name
//  2. INSERT column count matches the selected field count
//  3. UPDATE sets at least one column
//  4. no nil operand anywhere in the tree
//  5. IN lists and AND/OR groups are non-empty
//
// Validate is a pure function with no side effects.
func Validate(stmt Statement) ValidationResult {
	v := &validator{problems: []string{}}
	v.statement(stmt)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) statement(s Statement) {
	switch st := s.(type) {
	case nil:
		v.add("nil statement")
	case Create:
		v.table(st.Table)
		if len(st.Fields) == 0 {
			v.add("CREATE %s has no fields", st.Table.Name)
		}
	case Insert:
		v.table(st.Table)
		if len(st.Columns) == 0 {
			v.add("INSERT INTO %s has no columns", st.Table.Name)
		}
		if n := len(st.Select.Fields); n > 0 && n != len(st.Columns) {
			v.add("INSERT INTO %s: %d columns but %d selected values", st.Table.Name, len(st.Columns), n)
		}
		v.selection(st.Select)
	case Update:
		v.table(st.Table)
		if len(st.Set) == 0 {
			v.add("UPDATE %s sets no columns", st.Table.Name)
		}
		for _, a := range st.Set {
			if a.Column == "" {
				v.add("UPDATE %s: assignment without column", st.Table.Name)
			}
			v.value(a.Value)
		}
		v.optCondition(st.Where)
	case Delete:
		v.table(st.Table)
		v.optCondition(st.Where)
	case Drop:
		v.table(st.Table)
	case Query:
		v.selection(st.Select)
	default:
		v.add("unknown statement type %T", s)
	}
}

func (v *validator) table(t TableRef) {
	if t.Name == "" {
		v.add("table reference without name")
	}
}

func (v *validator) source(s Source) {
	switch src := s.(type) {
	case TableRef:
		v.table(src)
	case Selection:
		if src.Alias == "" {
			v.add("derived table without alias")
		}
		v.selection(src)
	case Join:
		if src.Left == nil || src.Right == nil {
			v.add("join with missing side")
			return
		}
		v.source(src.Left)
		v.source(src.Right)
		if src.On == nil {
			v.add("join without ON condition")
			return
		}
		v.condition(src.On)
	default:
		v.add("unknown source type %T", s)
	}
}

func (v *validator) selection(s Selection) {
	if s.Source != nil {
		v.source(s.Source)
	}
	for _, f := range s.Fields {
		v.value(f)
	}
	v.optCondition(s.Where)
	for _, g := range s.GroupBy {
		v.value(g)
	}
}

func (v *validator) optCondition(c Condition) {
	if c != nil {
		v.condition(c)
	}
}

func (v *validator) value(val Value) {
	switch x := val.(type) {
	case nil:
		v.add("nil value")
	case Column:
		if x.Name == "" {
			v.add("column without name")
		}
	case Star, String, Number, TableName, CurrentTimestamp:
	case Placeholder:
		if x.Token == "" {
			v.add("empty placeholder")
		}
	case Func:
		if len(x.Args) == 0 {
			v.add("%s without arguments", x.Name)
		}
		for _, a := range x.Args {
			v.value(a)
		}
	case Aliased:
		if x.Alias == "" {
			v.add("aliased value without alias")
		}
		v.value(x.Value)
	case Subquery:
		v.selection(x.Select)
	case Arith:
		v.value(x.Left)
		v.value(x.Right)
	case Case:
		v.condition(x.When)
		v.value(x.Then)
		v.value(x.Else)
	case DenseRank:
		if len(x.OrderByDesc) == 0 {
			v.add("DENSE_RANK without ORDER BY")
		}
		for _, p := range x.PartitionBy {
			v.value(p)
		}
		for _, o := range x.OrderByDesc {
			v.value(o)
		}
	default:
		v.add("unknown value type %T", val)
	}
}

func (v *validator) condition(c Condition) {
	switch x := c.(type) {
	case nil:
		v.add("nil condition")
	case Compare:
		v.value(x.Left)
		v.value(x.Right)
	case And:
		v.group("AND", x.Conditions)
	case Or:
		v.group("OR", x.Conditions)
	case Not:
		v.condition(x.Condition)
	case Exists:
		v.selection(x.Select)
	case In:
		if len(x.List) == 0 {
			v.add("IN with empty list")
		}
		v.value(x.Value)
		for _, item := range x.List {
			v.value(item)
		}
	case InSelect:
		v.value(x.Value)
		v.selection(x.Select)
	case IsNull:
		v.value(x.Value)
	default:
		v.add("unknown condition type %T", c)
	}
}

func (v *validator) group(op string, conds []Condition) {
	if len(conds) == 0 {
		v.add("empty %s group", op)
	}
	for _, c := range conds {
		v.condition(c)
	}
}
