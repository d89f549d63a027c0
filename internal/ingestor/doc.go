// Package ingestor executes generated ingestion plans against a database.
//
// An Ingestor wraps an executor.Executor and the generator options. Each
// call to Ingest or IngestGroup is one transaction:
//
//	BEGIN
//	  caller Before statements
//	  per ingestion:
//	    pre-actions (once)
//	    per data split:
//	      incoming count -> empty batch policy
//	      deduplicate and version
//	      dedup checks   -> DataError{DUPLICATE_ROWS} when > 1
//	      ingest
//	      statistics
//	      batch metadata
//	    post-actions (once)
//	  caller After statements
//	COMMIT
//
// Any error rolls back the whole transaction.
//
// EMPTY BATCHES:
//
// The incoming count decides whether a split is empty. Empty splits follow
// the mode's policy: NoOp skips the split without touching the database,
// FailEmptyBatch returns DataError{EMPTY_BATCH}, DeleteTargetData closes the
// open rows in scope. Delta modes without a policy run the regular plan.
//
// PLACEHOLDERS:
//
// Ingestion.Placeholders bind pattern tokens. A batch id pattern left unbound
// is bound to the last recorded batch id plus one, read inside the
// transaction. Unbound timestamp patterns are bound to the clock.
package ingestor
