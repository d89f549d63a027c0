// Package planner turns an ingest mode and its datasets into an ordered
// logical plan.
//
// PLAN PHASES:
//
//	PreActions             create main, batch metadata and auxiliary tables
//	DeduplicateAndVersion  materialize the effective staging source
//	DedupChecks            MAX_DUPLICATES probe; > 1 aborts the batch
//	Ingest                 close out and insert (mode specific)
//	Stats                  per-batch counts, read before Metadata
//	Metadata               record the batch in batch_metadata
//	PostActions            drop synthesized tables, empty staging
//
// MILESTONING:
//
// A row is open while its out-milestone holds the sentinel (batch id
// 999999999 or '9999-12-31 23:59:59'). Closing sets it to the previous batch
// id and/or the batch time; inserting sets in-milestones to the next batch id
// and/or the batch time. The next batch id is the metadata MAX + 1 subquery
// unless a BatchIDPattern stands in for it.
//
// STITCHING:
//
// Bitemporal delta with a from-only source derives validity through bounds
// by splitting and re-joining intervals through the temp table. With a delete
// indicator a second pass through the temp-with-delete-indicator table cuts
// tombstoned intervals out and extends the survivors over the gap.
//
// DATA SPLITS:
//
// A mode with a data split field filters raw staging by the
// {DATA_SPLIT_LOWER_BOUND_PLACEHOLDER} and {DATA_SPLIT_UPPER_BOUND_PLACEHOLDER}
// tokens. The same plan is bound once per split; each split allocates its own
// batch id when its metadata row lands.
package planner
