package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/milestone/internal/compiler"
)

// LoadMode controls how errors are handled during definition loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the definitions compiled from a set of paths.
type LoadResult struct {
	Definitions []*compiler.Definition
	FileCount   int // Number of CUE files read
}

// LoadError represents an error that occurred during definition loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// pathLoad is the outcome of loading one path.
type pathLoad struct {
	defs  []*compiler.Definition
	files int
	errs  []error
}

// LoadPaths compiles every ingest definition found under paths. A path is
// either a .cue file or a directory holding one CUE instance. Paths load
// concurrently, each with its own CUE context; results keep path order.
//
// With LoadModeFailFast the first failing path cancels the rest and only
// its error is returned. A nil result means nothing usable was loaded.
func LoadPaths(ctx context.Context, paths []string, mode LoadMode) (*LoadResult, []error) {
	if len(paths) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: "no paths given"}}
	}

	loads := make([]pathLoad, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			loads[i] = loadPath(p)
			if mode == LoadModeFailFast && len(loads[i].errs) > 0 {
				return loads[i].errs[0]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, []error{err}
	}

	result := &LoadResult{}
	var errs []error
	for _, l := range loads {
		result.Definitions = append(result.Definitions, l.defs...)
		result.FileCount += l.files
		errs = append(errs, l.errs...)
	}
	errs = append(errs, duplicateNames(result.Definitions)...)
	if mode == LoadModeFailFast && len(errs) > 0 {
		return result, errs[:1]
	}
	if len(result.Definitions) == 0 {
		return nil, errs
	}
	return result, errs
}

func loadPath(path string) pathLoad {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return pathLoad{errs: []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}}}
	}
	if err != nil {
		return pathLoad{errs: []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}}}
	}
	if !info.IsDir() {
		defs, errs := compiler.CompileFile(path)
		return pathLoad{defs: defs, files: 1, errs: convertCompileErrors(errs)}
	}

	files, err := FindCUEFiles(path)
	if err != nil {
		return pathLoad{errs: []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}}
	}
	if len(files) == 0 {
		return pathLoad{errs: []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}}
	}

	value, err := buildInstance(path)
	if err != nil {
		return pathLoad{files: len(files), errs: []error{err}}
	}
	defs, errs := compiler.Compile(value)
	return pathLoad{defs: defs, files: len(files), errs: convertCompileErrors(errs)}
}

// buildInstance loads the CUE instance rooted at dir.
func buildInstance(dir string) (cue.Value, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return value, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func duplicateNames(defs []*compiler.Definition) []error {
	var errs []error
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if seen[d.Name] {
			errs = append(errs, &LoadError{
				Code:    ErrCodeDuplicateName,
				Message: fmt.Sprintf("ingest definition %q is defined more than once", d.Name),
				Pos:     d.Pos,
			})
		}
		seen[d.Name] = true
	}
	return errs
}

func convertCompileErrors(errs []error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		out = append(out, convertCompileError(err))
	}
	return out
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Definition errors
	ErrCodeInvalidMode    = "E101" // Bad mode block
	ErrCodeInvalidDataset = "E102" // Bad main, staging or metadata dataset
	ErrCodeInvalidOptions = "E103" // Bad options block
	ErrCodeInvalidSplits  = "E104" // Bad split ranges
	ErrCodeDuplicateName  = "E105" // Same definition name in two paths
	ErrCodeCycle          = "E110" // Definitions feed each other in a loop
)

// MapFieldToErrorCode maps a compiler error field such as
// "ingest.customers.staging.fields[0].type" to an error code.
func MapFieldToErrorCode(field string) string {
	segs := strings.Split(field, ".")
	if len(segs) > 2 && segs[0] == "ingest" {
		segs = segs[2:] // definition name
	}
	for _, seg := range segs {
		if i := strings.IndexByte(seg, '['); i >= 0 {
			seg = seg[:i]
		}
		switch seg {
		case "mode":
			return ErrCodeInvalidMode
		case "main", "staging", "metadata":
			return ErrCodeInvalidDataset
		case "options":
			return ErrCodeInvalidOptions
		case "splits":
			return ErrCodeInvalidSplits
		}
	}
	return ErrCodeGeneric
}
