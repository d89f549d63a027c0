// Package ingestmode defines the closed set of ingestion modes and the
// strategies they combine.
//
// SEALED UNIONS:
//
// Every family is a sealed interface using the marker method pattern, so the
// planner can switch exhaustively:
//
//	IngestMode              UnitemporalDelta | UnitemporalSnapshot |
//	                        BitemporalDelta | BitemporalSnapshot
//	TransactionMilestoning  BatchID | TransactionDateTime | BatchIDAndDateTime
//	ValidityDerivation      SourceSpecifiesFrom | SourceSpecifiesFromAndThru
//	MergeStrategy           NoDeletes | DeleteIndicator
//	DeduplicationStrategy   AllowDuplicates | FilterDuplicates | FailOnDuplicates
//	VersioningStrategy      NoVersioning | MaxVersion
//	VersionResolver         DigestBased | VersionColumnBased
//	EmptyDatasetHandling    NoOp | FailEmptyBatch | DeleteTargetData
//
// Optional strategy fields may be nil. The accessor functions (Merge, Dedup,
// Versioning, EmptyHandling) return the effective default instead of nil.
//
// VALIDATION:
//
// Validate collects every structural problem of a mode against its datasets
// and reports them with E2xx codes. Combinations that cannot be planned are
// rejected here, before any SQL exists:
//   - FilterDuplicates with a snapshot mode
//   - SourceSpecifiesFrom with BitemporalSnapshot
//   - merge-time versioning outside UnitemporalDelta
//   - a versioning field that is neither numeric nor temporal
//   - optimization filters on non-key fields
package ingestmode
