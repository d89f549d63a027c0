// Package compiler turns CUE ingestion definitions into ingest modes,
// datasets and generator options.
//
// FORMAT:
//
//	ingest: customers: {
//		mode: {
//			kind:   "UnitemporalDelta"
//			digest: "digest"
//			transaction_milestoning: kind: "BatchIdAndDateTime"
//			delete_indicator: {field: "deleted", values: ["yes"]}
//			deduplication: "FilterDuplicates"
//		}
//		main:    name: "customers"
//		staging: {
//			name: "customers_stage"
//			fields: [
//				{name: "id", type: "INT", primary_key: true},
//				{name: "name", type: "VARCHAR", length: 64},
//				{name: "digest", type: "VARCHAR", length: 32},
//				{name: "deleted", type: "VARCHAR", length: 3},
//			]
//		}
//		options: collect_statistics: true
//	}
//
// Every definition is unified with a closed schema first, so unknown fields
// and bad enum values fail with a source position. Kind-specific fields on
// the wrong kind (validity on a unitemporal mode, partitions on a delta
// mode) are CompileErrors.
//
// VALIDATION:
//
// Validate runs the ingestmode checks per definition and adds the
// cross-definition ones (E120, E121).
//
// ORDERING:
//
// Order sorts definitions so a definition whose staging dataset is another
// definition's main dataset runs after it. Feed loops are CycleErrors.
package compiler
