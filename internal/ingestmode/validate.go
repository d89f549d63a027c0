package ingestmode

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/milestone/internal/dataset"
)

// Validation error codes (E200-E299)
const (
	ErrUnsupportedMode         = "E200" // unknown or nil ingest mode
	ErrMissingDigest           = "E201" // digest field required
	ErrMissingMilestoning      = "E202" // transaction milestoning required
	ErrMissingValidity         = "E203" // validity milestoning incomplete
	ErrInvalidFieldName        = "E204" // empty, duplicate or colliding name
	ErrUnknownField            = "E205" // field not present in staging
	ErrDeleteIndicator         = "E206" // delete indicator misconfigured
	ErrUnsupportedDedup        = "E207" // dedup strategy not valid for mode
	ErrVersioningFieldType     = "E208" // versioning field type not comparable
	ErrVersioningConfig        = "E209" // versioning misconfigured
	ErrPartitionConfig         = "E210" // partition fields/values misconfigured
	ErrDataSplitConfig         = "E211" // data split misconfigured
	ErrOptimizationFilter      = "E212" // optimization filter not on a primary key
	ErrUnsupportedDerivation   = "E213" // validity derivation not valid for mode
	ErrMissingPrimaryKey       = "E214" // staging has no primary key
	ErrSchemaEvolutionDisabled = "E215" // staging field absent from main
	ErrDatasetConfig           = "E216" // dataset missing or unnamed
)

// ValidationError is one structural problem in a mode/datasets combination.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors aggregates every problem Validate found.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// ValidateOptions carries generator options that affect validation.
type ValidateOptions struct {
	EnableSchemaEvolution bool
}

// Validate checks a mode against its datasets. Returns all errors found
// (does not fail-fast).
func Validate(m IngestMode, ds dataset.Datasets, opts ValidateOptions) []ValidationError {
	v := &validator{staging: ds.Staging.Schema}

	m = Normalize(m)
	if m == nil {
		v.add("mode", ErrUnsupportedMode, "ingest mode is required")
		return v.errs
	}

	if ds.Main.Name == "" {
		v.add("datasets.main", ErrDatasetConfig, "main dataset name is required")
	}
	if ds.Staging.Name == "" {
		v.add("datasets.staging", ErrDatasetConfig, "staging dataset name is required")
	}
	for _, d := range v.staging.Duplicates() {
		v.add("datasets.staging", ErrInvalidFieldName, fmt.Sprintf("duplicate field %q", d))
	}
	if len(v.staging.PrimaryKeys()) == 0 {
		v.add("datasets.staging", ErrMissingPrimaryKey, "staging must declare at least one primary key field")
	}

	v.digest(Digest(m))
	v.milestoning(Milestoning(m))

	switch mode := m.(type) {
	case UnitemporalDelta:
		v.merge(mode.MergeStrategy)
		v.versioning(mode.Versioning, true)
		v.dataSplit(mode.DataSplitField)
		v.optimizationFilters(mode.OptimizationFilters)
	case UnitemporalSnapshot:
		v.snapshotDedup(mode.Deduplication)
		v.versioning(mode.Versioning, false)
		v.partitions(mode.PartitionFields, mode.PartitionValues)
	case BitemporalDelta:
		v.validity(mode.ValidityMilestoning, false)
		v.merge(mode.MergeStrategy)
		v.versioning(mode.Versioning, false)
		v.dataSplit(mode.DataSplitField)
	case BitemporalSnapshot:
		v.validity(mode.ValidityMilestoning, true)
		v.snapshotDedup(mode.Deduplication)
		v.versioning(mode.Versioning, false)
	default:
		v.add("mode", ErrUnsupportedMode, fmt.Sprintf("unsupported ingest mode: %T", m))
	}

	if !opts.EnableSchemaEvolution && len(ds.Main.Schema.Fields) > 0 {
		v.schemaEvolution(m, ds.Main.Schema)
	}

	return v.errs
}

// Check is Validate returning a single error, or nil when valid.
func Check(m IngestMode, ds dataset.Datasets, opts ValidateOptions) error {
	if errs := Validate(m, ds, opts); len(errs) > 0 {
		return ValidationErrors(errs)
	}
	return nil
}

type validator struct {
	staging dataset.Schema
	errs    []ValidationError
}

func (v *validator) add(field, code, msg string) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: msg, Code: code})
}

// requireStaging reports E205 when name is not a staging column.
func (v *validator) requireStaging(field, name string) bool {
	if !v.staging.Has(name) {
		v.add(field, ErrUnknownField, fmt.Sprintf("field %q not found in staging", name))
		return false
	}
	return true
}

func (v *validator) digest(name string) {
	if strings.TrimSpace(name) == "" {
		v.add("digestField", ErrMissingDigest, "digest field is required")
		return
	}
	v.requireStaging("digestField", name)
}

func (v *validator) milestoning(tm TransactionMilestoning) {
	if tm == nil {
		v.add("transactionMilestoning", ErrMissingMilestoning, "transaction milestoning is required")
		return
	}
	names := MilestoningFields(tm)
	if len(names) == 0 {
		v.add("transactionMilestoning", ErrMissingMilestoning, fmt.Sprintf("unsupported transaction milestoning: %T", tm))
		return
	}
	seen := map[string]bool{}
	for _, n := range names {
		switch {
		case strings.TrimSpace(n) == "":
			v.add("transactionMilestoning", ErrInvalidFieldName, "milestoning field names must be non-empty")
		case seen[n]:
			v.add("transactionMilestoning", ErrInvalidFieldName, fmt.Sprintf("milestoning field %q used twice", n))
		case v.staging.Has(n):
			v.add("transactionMilestoning", ErrInvalidFieldName, fmt.Sprintf("milestoning field %q collides with a staging field", n))
		}
		seen[n] = true
	}
}

func (v *validator) validity(vd ValidDateTime, snapshot bool) {
	if vd.FromField == "" || vd.ThroughField == "" {
		v.add("validityMilestoning", ErrMissingValidity, "validity from and through target fields are required")
	}
	if vd.Derivation == nil {
		v.add("validityMilestoning.derivation", ErrMissingValidity, "validity derivation is required")
		return
	}
	from, through := ReferenceFields(vd.Derivation)
	if from == "" {
		v.add("validityMilestoning.derivation", ErrMissingValidity, "source validity from field is required")
	} else {
		v.requireStaging("validityMilestoning.derivation.from", from)
	}
	if through == "" {
		if snapshot {
			v.add("validityMilestoning.derivation", ErrUnsupportedDerivation,
				"bitemporal snapshot requires the source to specify both from and through")
		}
		return
	}
	v.requireStaging("validityMilestoning.derivation.through", through)
}

func (v *validator) merge(ms MergeStrategy) {
	di, ok := AsDeleteIndicator(ms)
	if !ok {
		return
	}
	if di.Field == "" {
		v.add("mergeStrategy.deleteField", ErrDeleteIndicator, "delete indicator field is required")
	} else if !v.staging.Has(di.Field) {
		v.add("mergeStrategy.deleteField", ErrDeleteIndicator, fmt.Sprintf("delete indicator field %q not found in staging", di.Field))
	}
	if len(di.Values) == 0 {
		v.add("mergeStrategy.deleteValues", ErrDeleteIndicator, "at least one delete indicator value is required")
	}
}

func (v *validator) snapshotDedup(d DeduplicationStrategy) {
	switch d.(type) {
	case FilterDuplicates, *FilterDuplicates:
		v.add("deduplicationStrategy", ErrUnsupportedDedup, "FilterDuplicates is only supported by delta modes")
	}
}

func (v *validator) versioning(vs VersioningStrategy, mergeTimeAllowed bool) {
	mv, ok := AsMaxVersion(vs)
	if !ok {
		return
	}
	if mv.VersioningField == "" {
		v.add("versioningStrategy.versioningField", ErrVersioningConfig, "versioning field is required")
		return
	}
	if !v.requireStaging("versioningStrategy.versioningField", mv.VersioningField) {
		return
	}
	f, _ := v.staging.Field(mv.VersioningField)
	if !f.Type.Type.IsNumeric() && !f.Type.Type.IsTemporal() {
		v.add("versioningStrategy.versioningField", ErrVersioningFieldType,
			fmt.Sprintf("versioning field %q has type %s; only numeric and date/time types can be compared", f.Name, f.Type.Type))
	}
	if c, isColumn := ColumnComparator(mv.Resolver); isColumn && c != GreaterThan && c != GreaterThanEqualTo {
		v.add("versioningStrategy.resolver", ErrVersioningConfig, fmt.Sprintf("unknown version comparator %q", c))
	}
	if !mv.PerformStageVersioning && !mergeTimeAllowed {
		v.add("versioningStrategy.performStageVersioning", ErrVersioningConfig,
			"merge-time version comparison is only supported by UnitemporalDelta; enable stage versioning")
	}
}

func (v *validator) dataSplit(field string) {
	if field == "" {
		return
	}
	if !v.staging.Has(field) {
		v.add("dataSplitField", ErrDataSplitConfig, fmt.Sprintf("data split field %q not found in staging", field))
	}
}

func (v *validator) optimizationFilters(fields []string) {
	pks := v.staging.PrimaryKeys()
	for i, f := range fields {
		path := fmt.Sprintf("optimizationFilters[%d]", i)
		if !v.requireStaging(path, f) {
			continue
		}
		if !slices.Contains(pks, f) {
			v.add(path, ErrOptimizationFilter, fmt.Sprintf("optimization filter field %q must be a primary key", f))
		}
	}
}

func (v *validator) partitions(fields []string, values map[string][]string) {
	for i, f := range fields {
		v.requireStaging(fmt.Sprintf("partitionFields[%d]", i), f)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !slices.Contains(fields, k) {
			v.add("partitionValues."+k, ErrPartitionConfig, fmt.Sprintf("partition values given for %q, which is not a partition field", k))
		}
		if len(values[k]) == 0 {
			v.add("partitionValues."+k, ErrPartitionConfig, "partition value list must be non-empty")
		}
	}
}

// schemaEvolution rejects staging fields that a user-supplied main schema
// does not have.
func (v *validator) schemaEvolution(m IngestMode, main dataset.Schema) {
	ignored := AuxiliaryStagingFields(m)
	for _, f := range v.staging.Fields {
		if slices.Contains(ignored, f.Name) || main.Has(f.Name) {
			continue
		}
		v.add("datasets.main", ErrSchemaEvolutionDisabled,
			fmt.Sprintf("staging field %q is not in main and schema evolution is disabled", f.Name))
	}
}

// AuxiliaryStagingFields lists staging columns that are control data rather
// than payload: data split, delete indicator and validity references.
func AuxiliaryStagingFields(m IngestMode) []string {
	var out []string
	if f := DataSplitField(m); f != "" {
		out = append(out, f)
	}
	if di, ok := AsDeleteIndicator(Merge(m)); ok && di.Field != "" {
		out = append(out, di.Field)
	}
	if vd, ok := Validity(m); ok && vd.Derivation != nil {
		from, through := ReferenceFields(vd.Derivation)
		if from != "" {
			out = append(out, from)
		}
		if through != "" {
			out = append(out, through)
		}
	}
	return out
}
