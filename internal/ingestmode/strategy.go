package ingestmode

// Default transaction milestoning column names.
const (
	DefaultBatchIDIn    = "batch_id_in"
	DefaultBatchIDOut   = "batch_id_out"
	DefaultBatchTimeIn  = "batch_time_in"
	DefaultBatchTimeOut = "batch_time_out"
)

// TransactionMilestoning records when a row version was current in
// transaction time. Sealed: BatchID, TransactionDateTime, BatchIDAndDateTime.
type TransactionMilestoning interface {
	transactionMilestoning()
}

// BatchID milestones rows with in/out batch ids.
type BatchID struct {
	InField  string
	OutField string
}

// TransactionDateTime milestones rows with in/out timestamps.
type TransactionDateTime struct {
	InField  string
	OutField string
}

// BatchIDAndDateTime milestones rows with both batch ids and timestamps.
// Batch ids drive change detection; timestamps are informational.
type BatchIDAndDateTime struct {
	BatchIDInField   string
	BatchIDOutField  string
	DateTimeInField  string
	DateTimeOutField string
}

func (BatchID) transactionMilestoning()            {}
func (TransactionDateTime) transactionMilestoning() {}
func (BatchIDAndDateTime) transactionMilestoning()  {}

// DefaultBatchID returns BatchID milestoning with the conventional column names.
func DefaultBatchID() BatchID {
	return BatchID{InField: DefaultBatchIDIn, OutField: DefaultBatchIDOut}
}

// DefaultTransactionDateTime returns timestamp milestoning with the
// conventional column names.
func DefaultTransactionDateTime() TransactionDateTime {
	return TransactionDateTime{InField: DefaultBatchTimeIn, OutField: DefaultBatchTimeOut}
}

// DefaultBatchIDAndDateTime returns combined milestoning with the
// conventional column names.
func DefaultBatchIDAndDateTime() BatchIDAndDateTime {
	return BatchIDAndDateTime{
		BatchIDInField:   DefaultBatchIDIn,
		BatchIDOutField:  DefaultBatchIDOut,
		DateTimeInField:  DefaultBatchTimeIn,
		DateTimeOutField: DefaultBatchTimeOut,
	}
}

// BatchIDFields returns the batch id in/out columns if tm uses batch ids.
func BatchIDFields(tm TransactionMilestoning) (in, out string, ok bool) {
	switch v := tm.(type) {
	case BatchID:
		return v.InField, v.OutField, true
	case *BatchID:
		return v.InField, v.OutField, true
	case BatchIDAndDateTime:
		return v.BatchIDInField, v.BatchIDOutField, true
	case *BatchIDAndDateTime:
		return v.BatchIDInField, v.BatchIDOutField, true
	}
	return "", "", false
}

// DateTimeFields returns the timestamp in/out columns if tm uses timestamps.
func DateTimeFields(tm TransactionMilestoning) (in, out string, ok bool) {
	switch v := tm.(type) {
	case TransactionDateTime:
		return v.InField, v.OutField, true
	case *TransactionDateTime:
		return v.InField, v.OutField, true
	case BatchIDAndDateTime:
		return v.DateTimeInField, v.DateTimeOutField, true
	case *BatchIDAndDateTime:
		return v.DateTimeInField, v.DateTimeOutField, true
	}
	return "", "", false
}

// MilestoningFields returns every column tm adds to the main table, in the
// order they appear in generated DDL.
func MilestoningFields(tm TransactionMilestoning) []string {
	var out []string
	if in, o, ok := BatchIDFields(tm); ok {
		out = append(out, in, o)
	}
	if in, o, ok := DateTimeFields(tm); ok {
		out = append(out, in, o)
	}
	return out
}

// ValidDateTime configures validity (business) time on the main table.
// FromField/ThroughField are the target columns; Derivation says how they
// are obtained from staging.
type ValidDateTime struct {
	FromField    string
	ThroughField string
	Derivation   ValidityDerivation
}

// ValidityDerivation is sealed: SourceSpecifiesFrom, SourceSpecifiesFromAndThru.
type ValidityDerivation interface {
	validityDerivation()
}

// SourceSpecifiesFrom means staging supplies only the start of validity; the
// end is derived by stitching.
type SourceSpecifiesFrom struct {
	FromField string
}

// SourceSpecifiesFromAndThru means staging supplies both bounds.
type SourceSpecifiesFromAndThru struct {
	FromField    string
	ThroughField string
}

func (SourceSpecifiesFrom) validityDerivation()        {}
func (SourceSpecifiesFromAndThru) validityDerivation() {}

// ReferenceFields returns the staging columns the derivation reads. through
// is "" for SourceSpecifiesFrom.
func ReferenceFields(d ValidityDerivation) (from, through string) {
	switch v := d.(type) {
	case SourceSpecifiesFrom:
		return v.FromField, ""
	case *SourceSpecifiesFrom:
		return v.FromField, ""
	case SourceSpecifiesFromAndThru:
		return v.FromField, v.ThroughField
	case *SourceSpecifiesFromAndThru:
		return v.FromField, v.ThroughField
	}
	return "", ""
}

// MergeStrategy controls how deletions arrive. Sealed: NoDeletes, DeleteIndicator.
type MergeStrategy interface {
	mergeStrategy()
}

// NoDeletes means staging never removes rows.
type NoDeletes struct{}

// DeleteIndicator marks staging rows whose Field value is in Values as
// tombstones: they close the matching open row and are never inserted.
type DeleteIndicator struct {
	Field  string
	Values []string
}

func (NoDeletes) mergeStrategy()       {}
func (DeleteIndicator) mergeStrategy() {}

// AsDeleteIndicator returns the delete indicator configuration, if any.
func AsDeleteIndicator(ms MergeStrategy) (DeleteIndicator, bool) {
	switch v := ms.(type) {
	case DeleteIndicator:
		return v, true
	case *DeleteIndicator:
		if v != nil {
			return *v, true
		}
	}
	return DeleteIndicator{}, false
}

// DeduplicationStrategy is sealed: AllowDuplicates, FilterDuplicates,
// FailOnDuplicates.
type DeduplicationStrategy interface {
	deduplicationStrategy()
}

// AllowDuplicates passes staging through unchanged.
type AllowDuplicates struct{}

// FilterDuplicates drops staging rows whose digest already matches an open
// main row before any other stage reads staging.
type FilterDuplicates struct{}

// FailOnDuplicates aborts the batch when staging holds more than one row per
// primary key.
type FailOnDuplicates struct{}

func (AllowDuplicates) deduplicationStrategy()  {}
func (FilterDuplicates) deduplicationStrategy() {}
func (FailOnDuplicates) deduplicationStrategy() {}

// VersioningStrategy is sealed: NoVersioning, MaxVersion.
type VersioningStrategy interface {
	versioningStrategy()
}

// NoVersioning ignores versions. FailOnDuplicatePrimaryKeys turns duplicate
// keys in staging into a batch failure.
type NoVersioning struct {
	FailOnDuplicatePrimaryKeys bool
}

// MaxVersion keeps the highest version per key.
//
// With PerformStageVersioning, staging is reduced to the max-version row per
// key before anything else. Without it, the version is only compared against
// the open main row at merge time (unitemporal delta).
type MaxVersion struct {
	VersioningField        string
	Resolver               VersionResolver // nil = DigestBased
	PerformStageVersioning bool
}

func (NoVersioning) versioningStrategy() {}
func (MaxVersion) versioningStrategy()   {}

// VersionResolver decides whether an incoming row replaces the open one.
// Sealed: DigestBased, VersionColumnBased.
type VersionResolver interface {
	versionResolver()
}

// DigestBased replaces the open row whenever the digest differs.
type DigestBased struct{}

// VersionColumnBased replaces the open row only when the incoming version
// wins under Comparator.
type VersionColumnBased struct {
	Comparator VersionComparator
}

func (DigestBased) versionResolver()        {}
func (VersionColumnBased) versionResolver() {}

// VersionComparator orders incoming against existing versions.
type VersionComparator string

const (
	GreaterThan        VersionComparator = "GREATER_THAN"
	GreaterThanEqualTo VersionComparator = "GREATER_THAN_EQUAL_TO"
)

// AsMaxVersion returns the max-version configuration, if any.
func AsMaxVersion(vs VersioningStrategy) (MaxVersion, bool) {
	switch v := vs.(type) {
	case MaxVersion:
		return v, true
	case *MaxVersion:
		if v != nil {
			return *v, true
		}
	}
	return MaxVersion{}, false
}

// ColumnComparator returns the comparator when the resolver compares a
// version column, and false for digest-based resolution.
func ColumnComparator(r VersionResolver) (VersionComparator, bool) {
	switch v := r.(type) {
	case VersionColumnBased:
		if v.Comparator == "" {
			return GreaterThan, true
		}
		return v.Comparator, true
	case *VersionColumnBased:
		if v == nil {
			return "", false
		}
		if v.Comparator == "" {
			return GreaterThan, true
		}
		return v.Comparator, true
	}
	return "", false
}

// FailsOnDuplicateKeys reports whether the mode requires a duplicate-key
// check before mutation.
func FailsOnDuplicateKeys(m IngestMode) bool {
	switch Dedup(m).(type) {
	case FailOnDuplicates, *FailOnDuplicates:
		return true
	}
	switch v := Versioning(m).(type) {
	case NoVersioning:
		return v.FailOnDuplicatePrimaryKeys
	case *NoVersioning:
		return v != nil && v.FailOnDuplicatePrimaryKeys
	}
	return false
}

// FiltersDuplicates reports whether the mode materializes a deduplicated
// staging table.
func FiltersDuplicates(m IngestMode) bool {
	switch Dedup(m).(type) {
	case FilterDuplicates, *FilterDuplicates:
		return true
	}
	return false
}

// EmptyDatasetHandling decides what an empty staging batch does.
// Sealed: NoOp, FailEmptyBatch, DeleteTargetData.
type EmptyDatasetHandling interface {
	emptyDatasetHandling()
}

// NoOp executes nothing: main and the batch id are unchanged.
type NoOp struct{}

// FailEmptyBatch fails the batch.
type FailEmptyBatch struct{}

// DeleteTargetData closes every open row (within the partition scope) and
// records the batch.
type DeleteTargetData struct{}

func (NoOp) emptyDatasetHandling()             {}
func (FailEmptyBatch) emptyDatasetHandling()   {}
func (DeleteTargetData) emptyDatasetHandling() {}
