package ingestmode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessors_Defaults(t *testing.T) {
	m := UnitemporalDelta{DigestField: "digest", TransactionMilestoning: DefaultBatchID()}

	assert.Equal(t, "digest", Digest(m))
	assert.Equal(t, NoDeletes{}, Merge(m))
	assert.Equal(t, AllowDuplicates{}, Dedup(m))
	assert.Equal(t, NoVersioning{}, Versioning(m))
	assert.Nil(t, EmptyHandling(m))
	assert.False(t, IsSnapshot(m))
	assert.False(t, IsBitemporal(m))
	assert.False(t, FailsOnDuplicateKeys(m))
}

func TestAccessors_PointerForms(t *testing.T) {
	m := &BitemporalDelta{
		DigestField:            "digest",
		TransactionMilestoning: DefaultBatchID(),
		ValidityMilestoning: ValidDateTime{
			FromField:    "validity_from_target",
			ThroughField: "validity_through_target",
			Derivation:   &SourceSpecifiesFrom{FromField: "validity_from_reference"},
		},
		MergeStrategy:  &DeleteIndicator{Field: "delete_indicator", Values: []string{"yes"}},
		DataSplitField: "data_split",
	}

	assert.Equal(t, KindBitemporalDelta, m.Kind())
	assert.True(t, IsBitemporal(m))
	assert.True(t, IsFromOnly(m))
	assert.Equal(t, "data_split", DataSplitField(m))

	di, ok := AsDeleteIndicator(Merge(m))
	assert.True(t, ok)
	assert.Equal(t, "delete_indicator", di.Field)
	assert.Equal(t, []string{"data_split", "delete_indicator", "validity_from_reference"}, AuxiliaryStagingFields(m))

	var nilMode *UnitemporalDelta
	assert.Nil(t, Normalize(nilMode))
}

func TestEmptyHandling_SnapshotDefault(t *testing.T) {
	assert.Equal(t, DeleteTargetData{}, EmptyHandling(UnitemporalSnapshot{}))
	assert.Equal(t, NoOp{}, EmptyHandling(UnitemporalSnapshot{EmptyHandling: NoOp{}}))
	assert.Equal(t, DeleteTargetData{}, EmptyHandling(BitemporalSnapshot{}))
	assert.Equal(t, FailEmptyBatch{}, EmptyHandling(BitemporalDelta{EmptyHandling: FailEmptyBatch{}}))
}

func TestMilestoningFields(t *testing.T) {
	assert.Equal(t, []string{"batch_id_in", "batch_id_out"}, MilestoningFields(DefaultBatchID()))
	assert.Equal(t, []string{"batch_time_in", "batch_time_out"}, MilestoningFields(DefaultTransactionDateTime()))
	assert.Equal(t, []string{"batch_id_in", "batch_id_out", "batch_time_in", "batch_time_out"},
		MilestoningFields(DefaultBatchIDAndDateTime()))
}

func TestDuplicatePolicies(t *testing.T) {
	tests := []struct {
		name   string
		mode   IngestMode
		fail   bool
		filter bool
	}{
		{"fail on duplicates", UnitemporalDelta{Deduplication: FailOnDuplicates{}}, true, false},
		{"no versioning fail on pk", UnitemporalDelta{Versioning: NoVersioning{FailOnDuplicatePrimaryKeys: true}}, true, false},
		{"filter", UnitemporalDelta{Deduplication: FilterDuplicates{}}, false, true},
		{"allow", UnitemporalSnapshot{}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fail, FailsOnDuplicateKeys(tt.mode))
			assert.Equal(t, tt.filter, FiltersDuplicates(tt.mode))
		})
	}
}

func TestColumnComparator(t *testing.T) {
	_, ok := ColumnComparator(DigestBased{})
	assert.False(t, ok)
	_, ok = ColumnComparator(nil)
	assert.False(t, ok)

	c, ok := ColumnComparator(VersionColumnBased{})
	assert.True(t, ok)
	assert.Equal(t, GreaterThan, c)

	c, ok = ColumnComparator(&VersionColumnBased{Comparator: GreaterThanEqualTo})
	assert.True(t, ok)
	assert.Equal(t, GreaterThanEqualTo, c)
}
