// Package harness runs ingestion scenarios: a CUE ingest definition driven
// through a sequence of staging loads against a private in-memory sqlite
// database, with every batch checked against expectations.
//
// SCENARIO FORMAT:
//
//	name: customers-delta
//	description: Three passes with a delete indicator
//	spec: customers.cue
//	setup:
//	  - CREATE TABLE staging (id INTEGER, name VARCHAR(64), digest VARCHAR(64))
//	steps:
//	  - name: initial load
//	    staging:
//	      - {id: 1, name: alpha, digest: d1}
//	    expect:
//	      - {status: DONE, batch_id: 1, stats: {rowsInserted: 1}}
//	  - name: duplicate keys
//	    staging:
//	      - {id: 1, name: alpha, digest: d1}
//	      - {id: 1, name: again, digest: d2}
//	    expect_error: DUPLICATE_ROWS
//	assertions:
//	  - type: rows
//	    query: SELECT id, batch_id_in FROM main ORDER BY id
//	    rows: ["1|1"]
//
// Batch times come from a step clock starting at the scenario's start time
// and advancing one hour per read.
//
// PRINCIPLES:
//
// After every successful step the main table is checked for a single open
// row per key, strictly increasing batch ids, and, for from-only bitemporal
// modes, contiguous validity intervals. See CheckPrinciples.
//
// GOLDEN FILES:
//
// RunWithGolden snapshots each step's batches (status, batch id, stats,
// split) to testdata/golden/<name>.golden. Run with -update to regenerate.
package harness
