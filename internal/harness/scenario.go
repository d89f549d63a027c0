package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/milestone/internal/clock"
	"github.com/roach88/milestone/internal/generator"
)

// Scenario drives one ingestion definition through a sequence of staging
// loads against a fresh sqlite database.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Spec is the CUE file holding the ingestion definition. Relative paths
	// are resolved against the scenario file's directory, or the base path
	// given to LoadScenarioWithBasePath.
	Spec string `yaml:"spec"`

	// Ingestion names the definition to run. Optional when Spec holds a
	// single definition.
	Ingestion string `yaml:"ingestion,omitempty"`

	// Setup statements run once before the first step, typically the
	// staging table DDL.
	Setup []string `yaml:"setup,omitempty"`

	// Start is the first batch time, formatted "2006-01-02 15:04:05".
	// Each clock read advances one hour. Default: 2024-01-01 00:00:00.
	Start string `yaml:"start,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step loads staging and runs one ingestion.
type Step struct {
	Name string `yaml:"name"`

	// Staging replaces the staging table contents. Keys are staging
	// column names. An empty or absent list empties staging.
	Staging []map[string]any `yaml:"staging,omitempty"`

	// Splits override the definition's data split ranges.
	Splits []generator.DataSplitRange `yaml:"splits,omitempty"`

	Placeholders map[string]string `yaml:"placeholders,omitempty"`

	// Expect lists one expectation per applied batch.
	Expect []BatchExpect `yaml:"expect,omitempty"`

	// ExpectError is the expected DataError code, e.g. DUPLICATE_ROWS.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// BatchExpect checks one batch. Zero fields are not checked.
type BatchExpect struct {
	Status  string           `yaml:"status,omitempty"`
	BatchID int64            `yaml:"batch_id,omitempty"`
	Stats   map[string]int64 `yaml:"stats,omitempty"`
}

// Assertion validates the database after the last step.
type Assertion struct {
	// Type is "rows" or "count".
	Type string `yaml:"type"`

	Query string `yaml:"query"`

	// Rows are the expected result rows, values joined by "|" (rows).
	Rows []string `yaml:"rows,omitempty"`

	// Count is the expected single integer result (count).
	Count *int64 `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertRows  = "rows"
	AssertCount = "count"
)

// DefaultStart is the first batch time when a scenario sets none.
const DefaultStart = "2024-01-01 00:00:00"

// StartTime parses Start, falling back to DefaultStart.
func (s *Scenario) StartTime() (time.Time, error) {
	start := s.Start
	if start == "" {
		start = DefaultStart
	}
	t, err := time.ParseInLocation(clock.Layout, start, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("start: %w", err)
	}
	return t, nil
}

// LoadScenario reads and parses a scenario YAML file. The spec path is
// resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the spec path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "asserts:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) && basePath != "" {
		scenario.Spec = filepath.Join(basePath, scenario.Spec)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Spec == "" {
		return fmt.Errorf("spec is required")
	}
	if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
		return fmt.Errorf("spec file not found: %s", s.Spec)
	}
	if _, err := s.StartTime(); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if step.ExpectError != "" && len(step.Expect) > 0 {
			return fmt.Errorf("steps[%d]: expect and expect_error are mutually exclusive", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Query == "" {
		return fmt.Errorf("assertions[%d]: query is required", index)
	}
	switch a.Type {
	case AssertRows:
		return nil
	case AssertCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count assertion requires count", index)
		}
		return nil
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
}
