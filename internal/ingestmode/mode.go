package ingestmode

// IngestMode describes how a staging batch is applied to a milestoned table.
//
// This is a sealed interface. The four variants are:
//   - UnitemporalDelta: staging holds changes only
//   - UnitemporalSnapshot: staging holds the full current state
//   - BitemporalDelta: changes with a validity interval
//   - BitemporalSnapshot: full state with a validity interval
//
// Snapshot variants have no merge strategy field, so a delete-indicator
// snapshot cannot be expressed.
type IngestMode interface {
	ingestMode()

	// Kind is the variant name used in logs and CUE definitions.
	Kind() string
}

// Mode kind names.
const (
	KindUnitemporalDelta    = "UnitemporalDelta"
	KindUnitemporalSnapshot = "UnitemporalSnapshot"
	KindBitemporalDelta     = "BitemporalDelta"
	KindBitemporalSnapshot  = "BitemporalSnapshot"
)

// UnitemporalDelta applies incremental changes with transaction-time
// milestoning only.
type UnitemporalDelta struct {
	DigestField            string
	TransactionMilestoning TransactionMilestoning
	MergeStrategy          MergeStrategy         // nil = NoDeletes
	Deduplication          DeduplicationStrategy // nil = AllowDuplicates
	Versioning             VersioningStrategy    // nil = NoVersioning
	DataSplitField         string
	OptimizationFilters    []string // primary-key fields bounded by staging min/max
	EmptyHandling          EmptyDatasetHandling  // nil = mode default
}

// UnitemporalSnapshot replaces the current state (optionally per partition)
// with the staging contents.
type UnitemporalSnapshot struct {
	DigestField            string
	TransactionMilestoning TransactionMilestoning
	PartitionFields        []string
	PartitionValues        map[string][]string // field -> values; restricts the snapshot scope
	Deduplication          DeduplicationStrategy
	Versioning             VersioningStrategy
	EmptyHandling          EmptyDatasetHandling
}

// BitemporalDelta applies incremental changes carrying a validity interval.
type BitemporalDelta struct {
	DigestField            string
	TransactionMilestoning TransactionMilestoning
	ValidityMilestoning    ValidDateTime
	MergeStrategy          MergeStrategy
	Deduplication          DeduplicationStrategy
	Versioning             VersioningStrategy
	DataSplitField         string
	EmptyHandling          EmptyDatasetHandling
}

// BitemporalSnapshot replaces the current state with staging rows that
// carry explicit from/through validity.
type BitemporalSnapshot struct {
	DigestField            string
	TransactionMilestoning TransactionMilestoning
	ValidityMilestoning    ValidDateTime
	Deduplication          DeduplicationStrategy
	Versioning             VersioningStrategy
	EmptyHandling          EmptyDatasetHandling
}

func (UnitemporalDelta) ingestMode()    {}
func (UnitemporalSnapshot) ingestMode() {}
func (BitemporalDelta) ingestMode()     {}
func (BitemporalSnapshot) ingestMode()  {}

func (UnitemporalDelta) Kind() string    { return KindUnitemporalDelta }
func (UnitemporalSnapshot) Kind() string { return KindUnitemporalSnapshot }
func (BitemporalDelta) Kind() string     { return KindBitemporalDelta }
func (BitemporalSnapshot) Kind() string  { return KindBitemporalSnapshot }

// Digest returns the digest field of any mode.
func Digest(m IngestMode) string {
	switch v := deref(m).(type) {
	case UnitemporalDelta:
		return v.DigestField
	case UnitemporalSnapshot:
		return v.DigestField
	case BitemporalDelta:
		return v.DigestField
	case BitemporalSnapshot:
		return v.DigestField
	}
	return ""
}

// Milestoning returns the transaction milestoning of any mode.
func Milestoning(m IngestMode) TransactionMilestoning {
	switch v := deref(m).(type) {
	case UnitemporalDelta:
		return v.TransactionMilestoning
	case UnitemporalSnapshot:
		return v.TransactionMilestoning
	case BitemporalDelta:
		return v.TransactionMilestoning
	case BitemporalSnapshot:
		return v.TransactionMilestoning
	}
	return nil
}

// Validity returns the validity milestoning of a bitemporal mode.
func Validity(m IngestMode) (ValidDateTime, bool) {
	switch v := deref(m).(type) {
	case BitemporalDelta:
		return v.ValidityMilestoning, true
	case BitemporalSnapshot:
		return v.ValidityMilestoning, true
	}
	return ValidDateTime{}, false
}

// Merge returns the merge strategy, defaulting to NoDeletes.
func Merge(m IngestMode) MergeStrategy {
	var ms MergeStrategy
	switch v := deref(m).(type) {
	case UnitemporalDelta:
		ms = v.MergeStrategy
	case BitemporalDelta:
		ms = v.MergeStrategy
	}
	if ms == nil {
		return NoDeletes{}
	}
	return ms
}

// Dedup returns the deduplication strategy, defaulting to AllowDuplicates.
func Dedup(m IngestMode) DeduplicationStrategy {
	var d DeduplicationStrategy
	switch v := deref(m).(type) {
	case UnitemporalDelta:
		d = v.Deduplication
	case UnitemporalSnapshot:
		d = v.Deduplication
	case BitemporalDelta:
		d = v.Deduplication
	case BitemporalSnapshot:
		d = v.Deduplication
	}
	if d == nil {
		return AllowDuplicates{}
	}
	return d
}

// Versioning returns the versioning strategy, defaulting to NoVersioning.
func Versioning(m IngestMode) VersioningStrategy {
	var vs VersioningStrategy
	switch v := deref(m).(type) {
	case UnitemporalDelta:
		vs = v.Versioning
	case UnitemporalSnapshot:
		vs = v.Versioning
	case BitemporalDelta:
		vs = v.Versioning
	case BitemporalSnapshot:
		vs = v.Versioning
	}
	if vs == nil {
		return NoVersioning{}
	}
	return vs
}

// DataSplitField returns the data split field of a delta mode, or "".
func DataSplitField(m IngestMode) string {
	switch v := deref(m).(type) {
	case UnitemporalDelta:
		return v.DataSplitField
	case BitemporalDelta:
		return v.DataSplitField
	}
	return ""
}

// EmptyHandling returns the effective empty-batch policy. Delta modes
// default to processing the empty batch normally (nil result); snapshot modes
// default to DeleteTargetData.
func EmptyHandling(m IngestMode) EmptyDatasetHandling {
	switch v := deref(m).(type) {
	case UnitemporalDelta:
		return v.EmptyHandling
	case BitemporalDelta:
		return v.EmptyHandling
	case UnitemporalSnapshot:
		if v.EmptyHandling == nil {
			return DeleteTargetData{}
		}
		return v.EmptyHandling
	case BitemporalSnapshot:
		if v.EmptyHandling == nil {
			return DeleteTargetData{}
		}
		return v.EmptyHandling
	}
	return nil
}

// IsSnapshot reports whether m treats staging as the full current state.
func IsSnapshot(m IngestMode) bool {
	switch deref(m).(type) {
	case UnitemporalSnapshot, BitemporalSnapshot:
		return true
	}
	return false
}

// IsBitemporal reports whether m carries validity milestoning.
func IsBitemporal(m IngestMode) bool {
	_, ok := Validity(m)
	return ok
}

// IsFromOnly reports whether m is bitemporal with validity derived from a
// single "from" reference (stitching required).
func IsFromOnly(m IngestMode) bool {
	v, ok := Validity(m)
	if !ok {
		return false
	}
	switch v.Derivation.(type) {
	case SourceSpecifiesFrom, *SourceSpecifiesFrom:
		return true
	}
	return false
}

// Normalize returns the value form of m so type switches only need the value
// cases. A nil pointer yields nil.
func Normalize(m IngestMode) IngestMode {
	switch v := m.(type) {
	case *UnitemporalDelta:
		if v == nil {
			return nil
		}
		return *v
	case *UnitemporalSnapshot:
		if v == nil {
			return nil
		}
		return *v
	case *BitemporalDelta:
		if v == nil {
			return nil
		}
		return *v
	case *BitemporalSnapshot:
		if v == nil {
			return nil
		}
		return *v
	}
	return m
}

func deref(m IngestMode) IngestMode { return Normalize(m) }
