package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDatasets() Datasets {
	schema := Schema{Fields: []Field{
		{Name: "id", Type: FieldType{Type: Integer}, PrimaryKey: true},
		{Name: "name", Type: FieldType{Type: Varchar}, PrimaryKey: true},
		{Name: "amount", Type: FieldType{Type: Double}},
		{Name: "digest", Type: FieldType{Type: Varchar}},
	}}
	return Datasets{
		Main:    Dataset{Database: "mydb", Name: "main", Schema: schema},
		Staging: Dataset{Database: "mydb", Name: "staging", Schema: schema},
	}
}

func TestResolve_SynthesizesDatasets(t *testing.T) {
	ds, err := sampleDatasets().Resolve(ResolveOptions{})
	require.NoError(t, err)

	assert.Equal(t, "sink", ds.Main.Alias)
	assert.Equal(t, "stage", ds.Staging.Alias)

	require.NotNil(t, ds.Temp)
	assert.Equal(t, "main_legend_persistence_temp", ds.Temp.Name)
	assert.Equal(t, "mydb", ds.Temp.Database)
	assert.Equal(t, "temp", ds.Temp.Alias)

	require.NotNil(t, ds.TempWithDeleteIndicator)
	assert.Equal(t, "main_legend_persistence_tempWithDeleteIndicator", ds.TempWithDeleteIndicator.Name)
	assert.True(t, ds.TempWithDeleteIndicator.Schema.Has(DeleteIndicatorColumn))
	assert.False(t, ds.Main.Schema.Has(DeleteIndicatorColumn), "main schema must not be mutated")

	require.NotNil(t, ds.StagingWithoutDuplicates)
	assert.Equal(t, "staging_legend_persistence_stageWithoutDuplicates", ds.StagingWithoutDuplicates.Name)

	require.NotNil(t, ds.TempStaging)
	assert.Equal(t, "staging_legend_persistence_temp_staging", ds.TempStaging.Name)

	require.NotNil(t, ds.Metadata)
	assert.Equal(t, "batch_metadata", ds.Metadata.Name)
	assert.Equal(t, []string{"table_name", "batch_start_ts_utc", "batch_end_ts_utc", "batch_status", "table_batch_id"},
		ds.Metadata.Schema.Names())
}

func TestResolve_SuffixAndMetadataOverride(t *testing.T) {
	ds, err := sampleDatasets().Resolve(ResolveOptions{Suffix: "abc123", MetadataTable: "batches"})
	require.NoError(t, err)

	assert.Equal(t, "main_legend_persistence_temp_abc123", ds.Temp.Name)
	assert.Equal(t, "staging_legend_persistence_temp_staging_abc123", ds.TempStaging.Name)
	assert.Equal(t, "batches", ds.Metadata.Name)
}

func TestResolve_KeepsUserSuppliedTemp(t *testing.T) {
	in := sampleDatasets()
	in.Temp = &Dataset{Database: "scratch", Name: "my_temp", Schema: in.Main.Schema}

	ds, err := in.Resolve(ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "my_temp", ds.Temp.Name)
	assert.Equal(t, "scratch", ds.Temp.Database)
	assert.Equal(t, "temp", ds.Temp.Alias)
}

func TestResolve_RequiresNames(t *testing.T) {
	_, err := Datasets{Staging: Dataset{Name: "s"}}.Resolve(ResolveOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main dataset")

	_, err = Datasets{Main: Dataset{Name: "m"}}.Resolve(ResolveOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging dataset")
}

func TestSchema_Helpers(t *testing.T) {
	s := sampleDatasets().Main.Schema

	assert.Equal(t, []string{"id", "name"}, s.PrimaryKeys())
	assert.Equal(t, []string{"id", "name", "digest"}, s.Without("amount", "").Names())

	replaced := s.With(Field{Name: "amount", Type: FieldType{Type: Decimal}}, Field{Name: "extra", Type: FieldType{Type: Text}})
	f, ok := replaced.Field("amount")
	require.True(t, ok)
	assert.Equal(t, Decimal, f.Type.Type)
	assert.Equal(t, "extra", replaced.Fields[len(replaced.Fields)-1].Name)
	assert.Equal(t, Double, s.Fields[2].Type.Type, "original untouched")

	dup := Schema{Fields: []Field{{Name: "a"}, {Name: "b"}, {Name: "a"}, {Name: "a"}}}
	assert.Equal(t, []string{"a"}, dup.Duplicates())
}

func TestDataType(t *testing.T) {
	tests := []struct {
		in       string
		want     DataType
		numeric  bool
		temporal bool
	}{
		{"integer", Integer, true, false},
		{" BIGINT ", BigInt, true, false},
		{"double", Double, true, false},
		{"varchar", Varchar, false, false},
		{"Date", Date, false, true},
		{"timestamp", Timestamp, false, true},
		{"datetime", DateTime, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDataType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.numeric, got.IsNumeric())
			assert.Equal(t, tt.temporal, got.IsTemporal())
		})
	}

	_, err := ParseDataType("geometry")
	assert.Error(t, err)
}
