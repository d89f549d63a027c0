package logicalplan

import "github.com/roach88/milestone/internal/dataset"

// Statement is one executable SQL statement.
//
// This is a sealed interface - only types in this package implement it.
//
// Statement types:
//   - Create: CREATE TABLE [IF NOT EXISTS]
//   - Insert: INSERT INTO ... SELECT
//   - Update: UPDATE ... SET ... WHERE
//   - Delete: DELETE FROM ... [WHERE]
//   - Drop: DROP TABLE [IF EXISTS]
//   - Query: a SELECT returning rows (stats, checks)
type Statement interface {
	statementNode()
}

// Source is anything a SELECT can read from: a table, a derived table or a
// join. Sealed.
type Source interface {
	sourceNode()
}

// Value is a scalar expression. Sealed.
type Value interface {
	valueNode()
}

// Condition is a boolean expression. Sealed.
type Condition interface {
	conditionNode()
}

// Create declares a table from a schema. The primary key is taken from the
// fields flagged PrimaryKey.
type Create struct {
	Table       TableRef
	Fields      []dataset.Field
	IfNotExists bool
}

// Insert copies the rows of Select into Columns of Table.
type Insert struct {
	Table   TableRef
	Columns []string
	Select  Selection
}

// Assignment is one "column = value" in an UPDATE.
type Assignment struct {
	Column string
	Value  Value
}

// Update sets columns on the rows of Table matching Where. Table.Alias
// qualifies column references inside Where.
type Update struct {
	Table TableRef
	Set   []Assignment
	Where Condition
}

// Delete removes rows of Table matching Where (all rows when nil).
type Delete struct {
	Table TableRef
	Where Condition
}

// Drop removes a table.
type Drop struct {
	Table    TableRef
	IfExists bool
	Cascade  bool
}

// Query is a standalone SELECT.
type Query struct {
	Select Selection
}

func (Create) statementNode() {}
func (Insert) statementNode() {}
func (Update) statementNode() {}
func (Delete) statementNode() {}
func (Drop) statementNode()   {}
func (Query) statementNode()  {}

// TableRef names a physical table. Alias is used when the table appears as
// a source or as the target of UPDATE/DELETE.
type TableRef struct {
	Database string
	Name     string
	Alias    string
}

// Ref builds a TableRef from a dataset.
func Ref(d dataset.Dataset) TableRef {
	return TableRef{Database: d.Database, Name: d.Name, Alias: d.Alias}
}

// As returns a copy with a different alias.
func (t TableRef) As(alias string) TableRef {
	t.Alias = alias
	return t
}

// Selection is a SELECT. With an Alias it can be used as a derived table.
//
// Semantics:
//
//	SELECT <fields | *> [FROM <source>] [WHERE <where>] [GROUP BY <groupBy>]
type Selection struct {
	Source  Source // nil = no FROM clause
	Fields  []Value
	Where   Condition
	GroupBy []Value
	Alias   string
}

// JoinKind selects the join operator.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
)

// Join combines two sources.
type Join struct {
	Left  Source
	Right Source
	Kind  JoinKind
	On    Condition
}

func (TableRef) sourceNode()  {}
func (Selection) sourceNode() {}
func (Join) sourceNode()      {}

// Column references a column, optionally qualified by a table or derived
// table alias.
type Column struct {
	Qualifier string
	Name      string
}

// Star is "*" or "<qualifier>.*".
type Star struct {
	Qualifier string
}

// String is a quoted string literal.
type String struct {
	Value string
}

// Number is an integer literal.
type Number struct {
	Value int64
}

// TableName is a string literal holding a table name. Unlike String it is
// subject to case conversion, so metadata lookups match the converted table
// names.
type TableName struct {
	Value string
}

// Placeholder is a token emitted verbatim and substituted before execution.
type Placeholder struct {
	Token string
}

// FuncName names a supported scalar or aggregate function.
type FuncName string

const (
	FuncCount    FuncName = "COUNT"
	FuncMin      FuncName = "MIN"
	FuncMax      FuncName = "MAX"
	FuncCoalesce FuncName = "COALESCE"
)

// Func is a function call.
type Func struct {
	Name FuncName
	Args []Value
}

// CurrentTimestamp renders the dialect's current timestamp expression.
type CurrentTimestamp struct{}

// Aliased names a selected value.
type Aliased struct {
	Value Value
	Alias string
}

// Subquery is a scalar subquery.
type Subquery struct {
	Select Selection
}

// ArithOp is a binary arithmetic operator.
type ArithOp string

const (
	Plus  ArithOp = "+"
	Minus ArithOp = "-"
)

// Arith is "<left><op><right>".
type Arith struct {
	Op    ArithOp
	Left  Value
	Right Value
}

// Case is "CASE WHEN <when> THEN <then> ELSE <else> END".
type Case struct {
	When Condition
	Then Value
	Else Value
}

// DenseRank is "DENSE_RANK() OVER (PARTITION BY ... ORDER BY ... DESC)".
type DenseRank struct {
	PartitionBy []Value
	OrderByDesc []Value
}

func (Column) valueNode()           {}
func (Star) valueNode()             {}
func (String) valueNode()           {}
func (Number) valueNode()           {}
func (TableName) valueNode()        {}
func (Placeholder) valueNode()      {}
func (Func) valueNode()             {}
func (CurrentTimestamp) valueNode() {}
func (Aliased) valueNode()          {}
func (Subquery) valueNode()         {}
func (Arith) valueNode()            {}
func (Case) valueNode()             {}
func (DenseRank) valueNode()        {}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
)

// Compare is "<left> <op> <right>".
type Compare struct {
	Op    CompareOp
	Left  Value
	Right Value
}

// And is true when every condition is true.
type And struct {
	Conditions []Condition
}

// Or is true when any condition is true.
type Or struct {
	Conditions []Condition
}

// Not negates a condition.
type Not struct {
	Condition Condition
}

// Exists is true when Select returns a row.
type Exists struct {
	Select Selection
}

// In tests membership in a literal list.
type In struct {
	Value  Value
	List   []Value
	Negate bool
}

// InSelect tests membership in a subquery result.
type InSelect struct {
	Value  Value
	Select Selection
	Negate bool
}

// IsNull tests for NULL.
type IsNull struct {
	Value  Value
	Negate bool
}

func (Compare) conditionNode()  {}
func (And) conditionNode()      {}
func (Or) conditionNode()       {}
func (Not) conditionNode()      {}
func (Exists) conditionNode()   {}
func (In) conditionNode()       {}
func (InSelect) conditionNode() {}
func (IsNull) conditionNode()   {}
