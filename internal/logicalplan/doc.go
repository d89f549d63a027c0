// Package logicalplan is the dialect-neutral SQL tree produced by the planner
// and consumed by sqlgen.
//
// The tree covers exactly the SQL shapes ingestion needs: DDL for the main,
// temporary and metadata tables, INSERT ... SELECT, UPDATE ... WHERE,
// DELETE, DROP and standalone SELECTs for statistics and checks.
//
// SEALED INTERFACES:
//
// Statement, Source, Value and Condition are sealed using the marker method
// pattern. Renderers switch exhaustively over the node types:
//
//	Statement  Create | Insert | Update | Delete | Drop | Query
//	Source     TableRef | Selection | Join
//	Value      Column | Star | String | Number | TableName | Placeholder |
//	           Func | CurrentTimestamp | Aliased | Subquery | Arith | Case |
//	           DenseRank
//	Condition  Compare | And | Or | Not | Exists | In | InSelect | IsNull
//
// Nodes are plain values. Building a plan never mutates a node after it has
// been placed in a tree, so subtrees are freely shared.
//
// LITERALS:
//
// Nothing is parameterized. Statements are persisted and replayed as text,
// so literals are rendered inline and placeholders (Placeholder) are
// substituted textually at execution time.
package logicalplan
