package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/milestone/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool `json:"valid"`

	// Order is the execution order of the definitions, producers first.
	Order  []string                   `json:"order,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`

	defs []*compiler.Definition // in Order
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate ingest definitions without generating SQL",
		Long: `Validate CUE ingest definitions without generating SQL.

Each path is a .cue file or a directory holding one CUE instance. Checks
the schema, the mode against its datasets, definitions sharing a main
dataset, and definitions that feed each other in a loop.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result, err := ValidatePaths(commandContext(cmd), paths, formatter)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, paths)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), paths)
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// commandLevel reports load codes that mean nothing could be read at all,
// as opposed to definitions that were read and found wrong.
func commandLevel(code string) bool {
	return slices.Contains([]string{ErrCodeScanError, ErrCodeNoFiles, ErrCodeLoadFailed, ErrCodeNotFound, ErrCodeBuildFailed}, code)
}

// ValidatePaths loads every definition under paths and validates them as
// one set. The error is set only when nothing could be loaded.
func ValidatePaths(ctx context.Context, paths []string, formatter *OutputFormatter) (*ValidationResult, error) {
	loaded, loadErrors := LoadPaths(ctx, paths, LoadModeCollectAll)
	if loaded == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if !errors.As(loadErrors[0], &loadErr) || commandLevel(loadErr.Code) {
			return nil, loadErrors[0]
		}
	}

	var defs []*compiler.Definition
	if loaded != nil {
		defs = loaded.Definitions
		formatter.VerboseLog("Found %d ingest definition(s) in %d CUE file(s)", len(defs), loaded.FileCount)
	}

	var verrs []compiler.ValidationError
	for _, err := range loadErrors {
		verrs = append(verrs, loadValidationError(err))
	}
	for _, d := range defs {
		formatter.VerboseLog("Validating ingestion: %s", d.Name)
	}
	verrs = append(verrs, compiler.Validate(defs)...)

	result := &ValidationResult{}
	ordered, err := compiler.Order(defs)
	var cycle *compiler.CycleError
	switch {
	case errors.As(err, &cycle):
		verrs = append(verrs, compiler.ValidationError{
			Ingestion: cycle.Path[0],
			Field:     "staging",
			Message:   cycle.Error(),
			Code:      ErrCodeCycle,
		})
	case err != nil:
		// duplicate names, already reported by the loader
		if len(verrs) == 0 {
			return nil, err
		}
	default:
		result.defs = ordered
		for _, d := range ordered {
			result.Order = append(result.Order, d.Name)
		}
	}

	result.Errors = verrs
	result.Valid = len(verrs) == 0
	return result, nil
}

func loadValidationError(err error) compiler.ValidationError {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
	}
	line := 0
	if loadErr.Pos.IsValid() {
		line = loadErr.Pos.Line()
	}
	return compiler.ValidationError{
		Field:   "load",
		Message: loadErr.Message,
		Code:    loadErr.Code,
		Line:    line,
	}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d ingestion(s) valid\n", len(result.Order))
	for i, name := range result.Order {
		fmt.Fprintf(formatter.Writer, "  %d. %s\n", i+1, name)
	}
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result *ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		if err := formatter.Failure(result, errs[0].Code, errs[0].Message); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		if err.Ingestion != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s.%s: %s\n\n", err.Code, err.Ingestion, err.Field, err.Message)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return exitErr
}
