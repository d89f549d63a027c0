package dataset

import (
	"fmt"
	"slices"
)

// Sentinels marking an open (not yet closed) milestoned row.
const (
	InfiniteBatchID  = 999999999
	InfiniteDateTime = "9999-12-31 23:59:59"
)

// Default aliases used in generated SQL.
const (
	AliasMain                     = "sink"
	AliasStaging                  = "stage"
	AliasTemp                     = "temp"
	AliasTempWithDeleteIndicator  = "tempWithDeleteIndicator"
	AliasMetadata                 = "batch_metadata"
	DefaultMetadataTable          = "batch_metadata"
	DeleteIndicatorColumn         = "delete_indicator"
	tempSuffix                    = "_legend_persistence_temp"
	tempWithDeleteIndicatorSuffix = "_legend_persistence_tempWithDeleteIndicator"
	stagingWithoutDupsSuffix      = "_legend_persistence_stageWithoutDuplicates"
	tempStagingSuffix             = "_legend_persistence_temp_staging"
)

// Metadata table column names.
const (
	MetadataTableName  = "table_name"
	MetadataBatchStart = "batch_start_ts_utc"
	MetadataBatchEnd   = "batch_end_ts_utc"
	MetadataStatus     = "batch_status"
	MetadataBatchID    = "table_batch_id"
)

// Dataset is a named table reference with a schema and the alias used for it
// in generated SQL.
type Dataset struct {
	Database string `json:"database,omitempty"`
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	Schema   Schema `json:"schema"`
}

// Ref returns a printable, database-qualified name.
func (d Dataset) Ref() string {
	if d.Database == "" {
		return d.Name
	}
	return d.Database + "." + d.Name
}

// Named returns a copy of d with a different table name. Alias and database
// are kept.
func (d Dataset) Named(name string) Dataset {
	d.Name = name
	d.Schema = d.Schema.Clone()
	return d
}

// WithAlias returns a copy of d with a different alias.
func (d Dataset) WithAlias(alias string) Dataset {
	d.Alias = alias
	return d
}

// Datasets bundles every table one ingestion touches.
//
// Main and Staging are required. The remaining datasets are optional; when
// nil, Resolve synthesizes them from Main/Staging with deterministic names.
type Datasets struct {
	Main                     Dataset
	Staging                  Dataset
	Temp                     *Dataset
	TempWithDeleteIndicator  *Dataset
	StagingWithoutDuplicates *Dataset
	TempStaging              *Dataset
	Metadata                 *Dataset
}

// ResolveOptions controls dataset synthesis.
type ResolveOptions struct {
	// Suffix is appended to synthesized table names as "_<suffix>".
	Suffix string

	// MetadataTable overrides the batch metadata table name.
	MetadataTable string
}

// Resolve returns a copy of ds with aliases defaulted and every optional
// dataset synthesized. Main keeps its own schema; callers that need a derived
// main schema apply it before calling Resolve.
func (ds Datasets) Resolve(opts ResolveOptions) (Datasets, error) {
	if ds.Main.Name == "" {
		return ds, fmt.Errorf("main dataset: name is required")
	}
	if ds.Staging.Name == "" {
		return ds, fmt.Errorf("staging dataset: name is required")
	}

	out := ds
	out.Main = withDefaultAlias(ds.Main, AliasMain)
	out.Staging = withDefaultAlias(ds.Staging, AliasStaging)

	suffix := ""
	if opts.Suffix != "" {
		suffix = "_" + opts.Suffix
	}

	if ds.Temp == nil {
		t := out.Main.Named(out.Main.Name + tempSuffix + suffix).WithAlias(AliasTemp)
		out.Temp = &t
	} else {
		t := withDefaultAlias(*ds.Temp, AliasTemp)
		out.Temp = &t
	}

	if ds.TempWithDeleteIndicator == nil {
		t := out.Main.Named(out.Main.Name + tempWithDeleteIndicatorSuffix + suffix).WithAlias(AliasTempWithDeleteIndicator)
		t.Schema = t.Schema.With(Field{Name: DeleteIndicatorColumn, Type: FieldType{Type: Integer}})
		out.TempWithDeleteIndicator = &t
	} else {
		t := withDefaultAlias(*ds.TempWithDeleteIndicator, AliasTempWithDeleteIndicator)
		out.TempWithDeleteIndicator = &t
	}

	if ds.StagingWithoutDuplicates == nil {
		t := out.Staging.Named(out.Staging.Name + stagingWithoutDupsSuffix + suffix).WithAlias(AliasStaging)
		out.StagingWithoutDuplicates = &t
	} else {
		t := withDefaultAlias(*ds.StagingWithoutDuplicates, AliasStaging)
		out.StagingWithoutDuplicates = &t
	}

	if ds.TempStaging == nil {
		t := out.Staging.Named(out.Staging.Name + tempStagingSuffix + suffix).WithAlias(AliasStaging)
		out.TempStaging = &t
	} else {
		t := withDefaultAlias(*ds.TempStaging, AliasStaging)
		out.TempStaging = &t
	}

	if ds.Metadata == nil {
		name := opts.MetadataTable
		if name == "" {
			name = DefaultMetadataTable
		}
		m := MetadataDataset(name)
		out.Metadata = &m
	} else {
		m := withDefaultAlias(*ds.Metadata, AliasMetadata)
		if len(m.Schema.Fields) == 0 {
			m.Schema = MetadataSchema()
		}
		out.Metadata = &m
	}

	return out, nil
}

// MetadataDataset returns the batch metadata table with its fixed schema.
func MetadataDataset(name string) Dataset {
	return Dataset{Name: name, Alias: AliasMetadata, Schema: MetadataSchema()}
}

// MetadataSchema is the column layout of the batch metadata table.
func MetadataSchema() Schema {
	return Schema{Fields: []Field{
		{Name: MetadataTableName, Type: FieldType{Type: Varchar, Length: intPtr(255)}},
		{Name: MetadataBatchStart, Type: FieldType{Type: DateTime}},
		{Name: MetadataBatchEnd, Type: FieldType{Type: DateTime}},
		{Name: MetadataStatus, Type: FieldType{Type: Varchar, Length: intPtr(32)}},
		{Name: MetadataBatchID, Type: FieldType{Type: Integer}},
	}}
}

// SynthesizedNames lists the table names Resolve may have generated, in a
// fixed order. Used for cleanup post-actions.
func (ds Datasets) SynthesizedNames() []Dataset {
	var out []Dataset
	for _, d := range []*Dataset{ds.Temp, ds.TempWithDeleteIndicator, ds.StagingWithoutDuplicates, ds.TempStaging} {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

func withDefaultAlias(d Dataset, alias string) Dataset {
	if d.Alias == "" {
		d.Alias = alias
	}
	return d
}

func intPtr(v int) *int { return &v }

// Schema is an ordered list of fields.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Field returns the named field and whether it exists.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Has reports whether the schema contains a field with the given name.
func (s Schema) Has(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Names returns field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// PrimaryKeys returns primary-key field names in schema order.
func (s Schema) PrimaryKeys() []string {
	var pks []string
	for _, f := range s.Fields {
		if f.PrimaryKey {
			pks = append(pks, f.Name)
		}
	}
	return pks
}

// Without returns a copy of the schema with the named fields removed.
// Empty names are ignored.
func (s Schema) Without(names ...string) Schema {
	out := Schema{Fields: make([]Field, 0, len(s.Fields))}
	for _, f := range s.Fields {
		if slices.Contains(names, f.Name) {
			continue
		}
		out.Fields = append(out.Fields, f)
	}
	return out
}

// With returns a copy of the schema with fields appended. A field whose name
// already exists replaces the existing definition in place.
func (s Schema) With(fields ...Field) Schema {
	out := s.Clone()
	for _, nf := range fields {
		replaced := false
		for i, f := range out.Fields {
			if f.Name == nf.Name {
				out.Fields[i] = nf
				replaced = true
				break
			}
		}
		if !replaced {
			out.Fields = append(out.Fields, nf)
		}
	}
	return out
}

// Clone returns a deep copy of the field slice.
func (s Schema) Clone() Schema {
	return Schema{Fields: slices.Clone(s.Fields)}
}

// Duplicates returns field names that appear more than once.
func (s Schema) Duplicates() []string {
	seen := make(map[string]int, len(s.Fields))
	var dups []string
	for _, f := range s.Fields {
		seen[f.Name]++
		if seen[f.Name] == 2 {
			dups = append(dups, f.Name)
		}
	}
	return dups
}
