package logicalplan

// Constructors used by the planner. They keep plan-building code close to
// the SQL it produces.

// Col is a qualified column reference.
func Col(qualifier, name string) Column { return Column{Qualifier: qualifier, Name: name} }

// Str is a string literal.
func Str(s string) String { return String{Value: s} }

// Num is an integer literal.
func Num(n int64) Number { return Number{Value: n} }

// As aliases a value.
func As(v Value, alias string) Aliased { return Aliased{Value: v, Alias: alias} }

// CountAll is COUNT(*).
func CountAll() Func { return Func{Name: FuncCount, Args: []Value{Star{}}} }

// Min is MIN(v).
func Min(v Value) Func { return Func{Name: FuncMin, Args: []Value{v}} }

// Max is MAX(v).
func Max(v Value) Func { return Func{Name: FuncMax, Args: []Value{v}} }

// Coalesce is COALESCE(vs...).
func Coalesce(vs ...Value) Func { return Func{Name: FuncCoalesce, Args: vs} }

// Sub is "<l>-<r>".
func Sub(l, r Value) Arith { return Arith{Op: Minus, Left: l, Right: r} }

// Add is "<l>+<r>".
func Add(l, r Value) Arith { return Arith{Op: Plus, Left: l, Right: r} }

func Eq(l, r Value) Compare { return Compare{Op: OpEq, Left: l, Right: r} }
func Ne(l, r Value) Compare { return Compare{Op: OpNe, Left: l, Right: r} }
func Gt(l, r Value) Compare { return Compare{Op: OpGt, Left: l, Right: r} }
func Ge(l, r Value) Compare { return Compare{Op: OpGe, Left: l, Right: r} }
func Lt(l, r Value) Compare { return Compare{Op: OpLt, Left: l, Right: r} }
func Le(l, r Value) Compare { return Compare{Op: OpLe, Left: l, Right: r} }

// AndOf conjoins the non-nil conditions. Returns nil when none remain and the
// single condition when only one does.
func AndOf(conds ...Condition) Condition {
	kept := compact(conds)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Conditions: kept}
}

// OrOf disjoins the non-nil conditions with the same collapsing rules as AndOf.
func OrOf(conds ...Condition) Condition {
	kept := compact(conds)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return Or{Conditions: kept}
}

// NotOf negates c.
func NotOf(c Condition) Not { return Not{Condition: c} }

// ExistsOf wraps a selection in EXISTS.
func ExistsOf(s Selection) Exists { return Exists{Select: s} }

// Scalar wraps a selection as a scalar subquery value.
func Scalar(s Selection) Subquery { return Subquery{Select: s} }

// Strs converts strings to literal values.
func Strs(ss []string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = Str(s)
	}
	return out
}

// Cols qualifies every name with the same qualifier.
func Cols(qualifier string, names []string) []Value {
	out := make([]Value, len(names))
	for i, n := range names {
		out[i] = Col(qualifier, n)
	}
	return out
}

// KeyMatch is the conjunction "left.k = right.k" over keys, wrapped so it
// renders as one parenthesized group.
func KeyMatch(left, right string, keys []string) Condition {
	conds := make([]Condition, len(keys))
	for i, k := range keys {
		conds[i] = Eq(Col(left, k), Col(right, k))
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return And{Conditions: conds}
}

func compact(conds []Condition) []Condition {
	kept := make([]Condition, 0, len(conds))
	for _, c := range conds {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return kept
}
