// Package executor defines how generated SQL reaches a database.
//
// An Executor hands out transactions; a Tx executes statements verbatim.
// Concrete executors live in subpackages and register themselves by kind,
// the way database/sql drivers do:
//
//	import _ "github.com/roach88/milestone/internal/executor/sqlexec" // sqlite, sqlserver, duckdb
//	import _ "github.com/roach88/milestone/internal/executor/pgexec"  // postgres
//
//	ex, err := executor.Open(ctx, executor.Config{Kind: "sqlite", DSN: ":memory:"})
//
// TRANSACTIONS:
//
// RunInTransaction is the only place that commits. Any error or panic from
// the callback rolls back everything the callback executed, including
// statements from several ingestions grouped together.
//
// Batch id allocation is a MAX+1 subquery evaluated inside the transaction.
// Two transactions ingesting the same table concurrently are only safe under
// an isolation level that serializes them.
package executor
