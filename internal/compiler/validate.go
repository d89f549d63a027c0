package compiler

import (
	"fmt"

	"github.com/roach88/milestone/internal/ingestmode"
)

// Definition-level validation codes (E120-E129). Mode and dataset problems
// carry the ingestmode codes (E200-E299).
const (
	ErrDuplicateMain = "E120" // two definitions write the same main dataset
	ErrSplitRanges   = "E121" // split ranges given without a data split field
)

// ValidationError is a structural problem in one definition.
type ValidationError struct {
	Ingestion string `json:"ingestion"`
	Field     string `json:"field"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	Line      int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s.%s: %s", e.Code, e.Line, e.Ingestion, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Ingestion, e.Field, e.Message)
}

// Validate checks compiled definitions. Returns all errors found (does not
// fail-fast).
func Validate(defs []*Definition) []ValidationError {
	var errs []ValidationError
	writers := map[string]string{}

	for _, d := range defs {
		line := 0
		if d.Pos.IsValid() {
			line = d.Pos.Line()
		}
		add := func(field, code, msg string) {
			errs = append(errs, ValidationError{Ingestion: d.Name, Field: field, Message: msg, Code: code, Line: line})
		}

		for _, e := range ingestmode.Validate(d.Mode, d.Datasets, ingestmode.ValidateOptions{
			EnableSchemaEvolution: d.Options.EnableSchemaEvolution,
		}) {
			add(e.Field, e.Code, e.Message)
		}

		ref := d.Datasets.Main.Ref()
		if other, ok := writers[ref]; ok {
			add("main", ErrDuplicateMain, fmt.Sprintf("main dataset %q is also written by %q", ref, other))
		} else {
			writers[ref] = d.Name
		}

		if len(d.Splits) > 0 && ingestmode.DataSplitField(d.Mode) == "" {
			add("splits", ErrSplitRanges, "split ranges require mode.data_split_field")
		}
	}
	return errs
}
