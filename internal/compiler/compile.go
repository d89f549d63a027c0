package compiler

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/milestone/internal/dataset"
	"github.com/roach88/milestone/internal/generator"
	"github.com/roach88/milestone/internal/ingestmode"
	"github.com/roach88/milestone/internal/ingestor"
	"github.com/roach88/milestone/internal/sqlgen"
)

// Definition is one compiled ingest.<name> struct.
type Definition struct {
	Name     string
	Mode     ingestmode.IngestMode
	Datasets dataset.Datasets

	// Options never carry a Sink or Clock; those belong to the caller.
	Options generator.Options
	Splits  []generator.DataSplitRange

	Pos token.Pos
}

// Ingestion returns the definition as an ingestor input.
func (d *Definition) Ingestion(placeholders map[string]string) ingestor.Ingestion {
	opts := d.Options
	return ingestor.Ingestion{
		Mode:         d.Mode,
		Datasets:     d.Datasets,
		Splits:       d.Splits,
		Placeholders: placeholders,
		Options:      &opts,
	}
}

// Compile compiles every field of the top-level ingest struct of v.
// Errors are collected per definition; definitions that compile are
// returned alongside them.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`ingest: customers: { mode: {...}, main: {...}, staging: {...} }`)
//	defs, errs := Compile(v)
func Compile(v cue.Value) ([]*Definition, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	root := v.LookupPath(cue.ParsePath("ingest"))
	if !root.Exists() {
		return nil, []error{&CompileError{
			Field:   "ingest",
			Message: "no ingest definitions found",
			Pos:     v.Pos(),
		}}
	}

	schema, err := ingestSchema(v.Context())
	if err != nil {
		return nil, []error{err}
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}
	var (
		defs []*Definition
		errs []error
	)
	for iter.Next() {
		def, err := compileDefinition(schema, iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 && len(errs) == 0 {
		errs = append(errs, &CompileError{
			Field:   "ingest",
			Message: "no ingest definitions found",
			Pos:     root.Pos(),
		})
	}
	return defs, errs
}

// CompileFile reads and compiles one CUE file.
func CompileFile(path string) ([]*Definition, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("read %s: %w", path, err)}
	}
	return Compile(cuecontext.New().CompileBytes(data, cue.Filename(path)))
}

// Find returns the definition called name. An empty name selects the only
// definition and fails when there are several.
func Find(defs []*Definition, name string) (*Definition, error) {
	if name == "" {
		if len(defs) != 1 {
			return nil, fmt.Errorf("%d ingest definitions found, name one of %s", len(defs), strings.Join(definitionNames(defs), ", "))
		}
		return defs[0], nil
	}
	for _, d := range defs {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("ingest definition %q not found (have %s)", name, strings.Join(definitionNames(defs), ", "))
}

func definitionNames(defs []*Definition) []string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// CompileDefinition compiles a single ingest.<name> value.
func CompileDefinition(v cue.Value) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	schema, err := ingestSchema(v.Context())
	if err != nil {
		return nil, err
	}
	return compileDefinition(schema, v)
}

func ingestSchema(ctx *cue.Context) (cue.Value, error) {
	s := ctx.CompileString(schemaSource, cue.Filename("ingest_schema.cue"))
	if err := s.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile ingest schema: %w", err)
	}
	return s.LookupPath(cue.ParsePath("#Ingest")), nil
}

func compileDefinition(schema, v cue.Value) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{Pos: v.Pos()}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		def.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	u := schema.Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	p := parser{base: v.Path().String()}

	var err error
	if def.Mode, err = p.mode(u.LookupPath(cue.ParsePath("mode"))); err != nil {
		return nil, err
	}
	if def.Datasets.Main, err = p.dataset(u, "main"); err != nil {
		return nil, err
	}
	if def.Datasets.Staging, err = p.dataset(u, "staging"); err != nil {
		return nil, err
	}
	if md := u.LookupPath(cue.ParsePath("metadata")); md.Exists() {
		m := dataset.MetadataDataset(p.str(md, "name"))
		m.Database = p.str(md, "database")
		def.Datasets.Metadata = &m
	}
	if def.Options, err = p.options(u.LookupPath(cue.ParsePath("options"))); err != nil {
		return nil, err
	}
	if def.Splits, err = p.splits(u.LookupPath(cue.ParsePath("splits"))); err != nil {
		return nil, err
	}
	if err := p.err; err != nil {
		return nil, err
	}
	return def, nil
}

// parser reads fields of a schema-checked value. The first decode error
// sticks, so callers check p.err once.
type parser struct {
	base string
	err  error
}

func (p *parser) path(rel string) string {
	if p.base == "" {
		return rel
	}
	return p.base + "." + rel
}

func (p *parser) fail(v cue.Value, field, format string, args ...any) error {
	return &CompileError{
		Field:   p.path(field),
		Message: fmt.Sprintf(format, args...),
		Pos:     v.Pos(),
	}
}

func (p *parser) keep(err error) {
	if err != nil && p.err == nil {
		p.err = formatCUEError(err)
	}
}

// str returns the string at path, or "" when the field is absent.
func (p *parser) str(v cue.Value, path string) string {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return ""
	}
	s, err := f.String()
	p.keep(err)
	return s
}

func (p *parser) boolean(v cue.Value, path string) bool {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return false
	}
	b, err := f.Bool()
	p.keep(err)
	return b
}

func (p *parser) strs(v cue.Value, path string) []string {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil
	}
	var out []string
	p.keep(f.Decode(&out))
	return out
}

func (p *parser) intPtr(v cue.Value, path string) *int {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil
	}
	n, err := f.Int64()
	p.keep(err)
	i := int(n)
	return &i
}

func (p *parser) dataset(v cue.Value, name string) (dataset.Dataset, error) {
	d := v.LookupPath(cue.ParsePath(name))
	out := dataset.Dataset{
		Name:     p.str(d, "name"),
		Database: p.str(d, "database"),
		Alias:    p.str(d, "alias"),
	}

	fields := d.LookupPath(cue.ParsePath("fields"))
	if !fields.Exists() {
		return out, nil
	}
	iter, err := fields.List()
	if err != nil {
		return out, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		f := iter.Value()
		typ, err := dataset.ParseDataType(p.str(f, "type"))
		if err != nil {
			return out, p.fail(f.LookupPath(cue.ParsePath("type")), fmt.Sprintf("%s.fields[%d].type", name, i), "%v", err)
		}
		out.Schema.Fields = append(out.Schema.Fields, dataset.Field{
			Name: p.str(f, "name"),
			Type: dataset.FieldType{
				Type:   typ,
				Length: p.intPtr(f, "length"),
				Scale:  p.intPtr(f, "scale"),
			},
			PrimaryKey: p.boolean(f, "primary_key"),
			NotNull:    p.boolean(f, "not_null"),
		})
	}
	return out, nil
}

func (p *parser) options(v cue.Value) (generator.Options, error) {
	var o generator.Options
	if !v.Exists() {
		return o, nil
	}
	cc, err := sqlgen.ParseCaseConversion(p.str(v, "case_conversion"))
	if err != nil {
		return o, p.fail(v, "options.case_conversion", "%v", err)
	}
	o = generator.Options{
		CleanupStagingData:         p.boolean(v, "cleanup_staging_data"),
		CollectStatistics:          p.boolean(v, "collect_statistics"),
		EnableSchemaEvolution:      p.boolean(v, "enable_schema_evolution"),
		AddOptimizationFilters:     p.boolean(v, "add_optimization_filters"),
		UniqueTempTables:           p.boolean(v, "unique_temp_tables"),
		TempTableSuffix:            p.str(v, "temp_table_suffix"),
		CaseConversion:             cc,
		BatchIDPattern:             p.str(v, "batch_id_pattern"),
		BatchStartTimestampPattern: p.str(v, "batch_start_timestamp_pattern"),
		BatchEndTimestampPattern:   p.str(v, "batch_end_timestamp_pattern"),
	}
	return o, nil
}

func (p *parser) splits(v cue.Value) ([]generator.DataSplitRange, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []generator.DataSplitRange
	for iter.Next() {
		var r generator.DataSplitRange
		p.keep(iter.Value().Decode(&r))
		out = append(out, r)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "cue"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	format, args := first.Msg()
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: field, Message: fmt.Sprintf(format, args...)}
}
