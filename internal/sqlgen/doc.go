// Package sqlgen renders logical plans into dialect SQL text.
//
// SINKS:
//
// A RelationalSink answers every dialect question the renderer has:
// identifier quoting, type names, the current-timestamp expression and the
// shape of UPDATE/DELETE/CREATE. Built-in sinks:
//
//	ansi       "quoted", qualified SET columns, CURRENT_TIMESTAMP()
//	postgres   "quoted", TIMESTAMP / DOUBLE PRECISION
//	sqlite     "quoted", declared types pass through
//	duckdb     "quoted", TIMESTAMP
//	sqlserver  [bracketed], UPDATE alias SET ... FROM, OBJECT_ID guard
//
// RENDERING RULES:
//
// A conjunction or disjunction with one operand renders bare; otherwise each
// operand is parenthesized. SELECT lists are comma-joined without spaces.
// Column aliases are quoted identifiers; table and derived-table aliases are
// bare. Literals are always inlined.
//
// Case conversion (TO_UPPER, TO_LOWER) applies to identifiers, aliases and
// TableName literals. It never touches keywords, placeholders or data
// literals.
package sqlgen
