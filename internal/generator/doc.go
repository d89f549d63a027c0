// Package generator is the SQL generation facade: it plans an ingestion,
// renders it for a sink and returns the statements grouped by phase.
//
// PLACEHOLDERS:
//
// Plans may carry tokens that are bound later:
//
//	{BATCH_ID_PATTERN}                    Options.BatchIDPattern
//	{BATCH_START_TS_PATTERN}              Options.BatchStartTimestampPattern
//	{BATCH_END_TS_PATTERN}                Options.BatchEndTimestampPattern
//	{DATA_SPLIT_LOWER_BOUND_PLACEHOLDER}  GenerateSplits
//	{DATA_SPLIT_UPPER_BOUND_PLACEHOLDER}  GenerateSplits
//
// Timestamp patterns render inside quotes, so bound values carry none.
//
// FINGERPRINT:
//
// Every result carries a SHA-256 over its statements in execution order,
// prefixed with DomainPlan. Binding placeholders changes the fingerprint.
package generator
