package ingestmode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/milestone/internal/dataset"
)

func stagingSchema() dataset.Schema {
	return dataset.Schema{Fields: []dataset.Field{
		{Name: "id", Type: dataset.FieldType{Type: dataset.Integer}, PrimaryKey: true},
		{Name: "name", Type: dataset.FieldType{Type: dataset.Varchar}, PrimaryKey: true},
		{Name: "amount", Type: dataset.FieldType{Type: dataset.Double}},
		{Name: "biz_date", Type: dataset.FieldType{Type: dataset.Date}},
		{Name: "digest", Type: dataset.FieldType{Type: dataset.Varchar}},
		{Name: "version", Type: dataset.FieldType{Type: dataset.Integer}},
		{Name: "note", Type: dataset.FieldType{Type: dataset.Varchar}},
		{Name: "delete_indicator", Type: dataset.FieldType{Type: dataset.Varchar}},
		{Name: "validity_from_reference", Type: dataset.FieldType{Type: dataset.DateTime}},
		{Name: "validity_through_reference", Type: dataset.FieldType{Type: dataset.DateTime}},
		{Name: "data_split", Type: dataset.FieldType{Type: dataset.BigInt}},
	}}
}

func testDatasets() dataset.Datasets {
	return dataset.Datasets{
		Main:    dataset.Dataset{Name: "main"},
		Staging: dataset.Dataset{Name: "staging", Schema: stagingSchema()},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_ValidModes(t *testing.T) {
	validity := ValidDateTime{
		FromField:    "validity_from_target",
		ThroughField: "validity_through_target",
		Derivation:   SourceSpecifiesFrom{FromField: "validity_from_reference"},
	}
	fromAndThru := validity
	fromAndThru.Derivation = SourceSpecifiesFromAndThru{FromField: "validity_from_reference", ThroughField: "validity_through_reference"}

	tests := []struct {
		name string
		mode IngestMode
	}{
		{"unitemporal delta", UnitemporalDelta{
			DigestField:            "digest",
			TransactionMilestoning: DefaultBatchIDAndDateTime(),
			MergeStrategy:          DeleteIndicator{Field: "delete_indicator", Values: []string{"yes"}},
			DataSplitField:         "data_split",
			OptimizationFilters:    []string{"id"},
			Versioning: MaxVersion{
				VersioningField: "version",
				Resolver:        VersionColumnBased{Comparator: GreaterThanEqualTo},
			},
		}},
		{"unitemporal snapshot pointer", &UnitemporalSnapshot{
			DigestField:            "digest",
			TransactionMilestoning: DefaultBatchID(),
			PartitionFields:        []string{"biz_date"},
			PartitionValues:        map[string][]string{"biz_date": {"2000-01-01"}},
			Deduplication:          FailOnDuplicates{},
		}},
		{"bitemporal delta from only", BitemporalDelta{
			DigestField:            "digest",
			TransactionMilestoning: DefaultBatchID(),
			ValidityMilestoning:    validity,
			Deduplication:          FilterDuplicates{},
		}},
		{"bitemporal snapshot", BitemporalSnapshot{
			DigestField:            "digest",
			TransactionMilestoning: DefaultTransactionDateTime(),
			ValidityMilestoning:    fromAndThru,
			Versioning:             MaxVersion{VersioningField: "version", PerformStageVersioning: true},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.mode, testDatasets(), ValidateOptions{})
			assert.Empty(t, errs)
			assert.NoError(t, Check(tt.mode, testDatasets(), ValidateOptions{}))
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mode IngestMode
		want []string
	}{
		{
			name: "nil mode",
			mode: nil,
			want: []string{ErrUnsupportedMode},
		},
		{
			name: "missing digest and milestoning",
			mode: UnitemporalDelta{},
			want: []string{ErrMissingDigest, ErrMissingMilestoning},
		},
		{
			name: "digest not in staging",
			mode: UnitemporalDelta{DigestField: "hash", TransactionMilestoning: DefaultBatchID()},
			want: []string{ErrUnknownField},
		},
		{
			name: "milestoning collides with staging",
			mode: UnitemporalDelta{DigestField: "digest", TransactionMilestoning: BatchID{InField: "amount", OutField: "out"}},
			want: []string{ErrInvalidFieldName},
		},
		{
			name: "delete indicator without values",
			mode: UnitemporalDelta{
				DigestField:            "digest",
				TransactionMilestoning: DefaultBatchID(),
				MergeStrategy:          DeleteIndicator{Field: "delete_indicator"},
			},
			want: []string{ErrDeleteIndicator},
		},
		{
			name: "filter duplicates in snapshot",
			mode: UnitemporalSnapshot{DigestField: "digest", TransactionMilestoning: DefaultBatchID(), Deduplication: FilterDuplicates{}},
			want: []string{ErrUnsupportedDedup},
		},
		{
			name: "versioning field of unsupported type",
			mode: UnitemporalDelta{
				DigestField:            "digest",
				TransactionMilestoning: DefaultBatchID(),
				Versioning:             MaxVersion{VersioningField: "note", PerformStageVersioning: true},
			},
			want: []string{ErrVersioningFieldType},
		},
		{
			name: "merge-time versioning in snapshot",
			mode: UnitemporalSnapshot{
				DigestField:            "digest",
				TransactionMilestoning: DefaultBatchID(),
				Versioning:             MaxVersion{VersioningField: "version"},
			},
			want: []string{ErrVersioningConfig},
		},
		{
			name: "partition values for unknown partition field",
			mode: UnitemporalSnapshot{
				DigestField:            "digest",
				TransactionMilestoning: DefaultBatchID(),
				PartitionFields:        []string{"biz_date"},
				PartitionValues:        map[string][]string{"amount": {"1"}},
			},
			want: []string{ErrPartitionConfig},
		},
		{
			name: "data split field missing",
			mode: UnitemporalDelta{DigestField: "digest", TransactionMilestoning: DefaultBatchID(), DataSplitField: "split"},
			want: []string{ErrDataSplitConfig},
		},
		{
			name: "optimization filter on non key",
			mode: UnitemporalDelta{DigestField: "digest", TransactionMilestoning: DefaultBatchID(), OptimizationFilters: []string{"amount"}},
			want: []string{ErrOptimizationFilter},
		},
		{
			name: "bitemporal snapshot from only",
			mode: BitemporalSnapshot{
				DigestField:            "digest",
				TransactionMilestoning: DefaultBatchID(),
				ValidityMilestoning: ValidDateTime{
					FromField:    "validity_from_target",
					ThroughField: "validity_through_target",
					Derivation:   SourceSpecifiesFrom{FromField: "validity_from_reference"},
				},
			},
			want: []string{ErrUnsupportedDerivation},
		},
		{
			name: "bitemporal without derivation",
			mode: BitemporalDelta{
				DigestField:            "digest",
				TransactionMilestoning: DefaultBatchID(),
				ValidityMilestoning:    ValidDateTime{FromField: "f", ThroughField: "t"},
			},
			want: []string{ErrMissingValidity},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.mode, testDatasets(), ValidateOptions{})
			assert.Equal(t, tt.want, codes(errs))
		})
	}
}

func TestValidate_SchemaEvolution(t *testing.T) {
	ds := testDatasets()
	ds.Staging.Schema = ds.Staging.Schema.Without("note", "version", "validity_from_reference", "validity_through_reference", "delete_indicator")
	ds.Main.Schema = ds.Staging.Schema.Without("amount", "data_split")

	mode := UnitemporalDelta{DigestField: "digest", TransactionMilestoning: DefaultBatchID(), DataSplitField: "data_split"}

	errs := Validate(mode, ds, ValidateOptions{})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrSchemaEvolutionDisabled, errs[0].Code)
	assert.Contains(t, errs[0].Message, `"amount"`)

	assert.Empty(t, Validate(mode, ds, ValidateOptions{EnableSchemaEvolution: true}))
}

func TestValidate_MissingPrimaryKey(t *testing.T) {
	ds := testDatasets()
	for i := range ds.Staging.Schema.Fields {
		ds.Staging.Schema.Fields[i].PrimaryKey = false
	}
	errs := Validate(UnitemporalDelta{DigestField: "digest", TransactionMilestoning: DefaultBatchID()}, ds, ValidateOptions{})
	assert.Equal(t, []string{ErrMissingPrimaryKey}, codes(errs))
}

func TestCheck_AggregatesErrors(t *testing.T) {
	err := Check(UnitemporalDelta{}, testDatasets(), ValidateOptions{})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "[E201] digestField")
	assert.Contains(t, err.Error(), "; [E202] transactionMilestoning")
}
