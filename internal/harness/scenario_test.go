package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/milestone/internal/generator"
)

// writeScenario writes a scenario next to an empty spec file and returns
// the scenario path.
func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spec.cue"), []byte("ingest: {}\n"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, `
name: split
description: split ranges
spec: spec.cue
ingestion: orders
start: "2023-05-01 12:00:00"
setup:
  - CREATE TABLE staging (id INTEGER)
steps:
  - name: first
    staging:
      - {id: 1}
    splits:
      - {lower: 1, upper: 3}
    placeholders:
      "{BATCH_ID}": "4"
    expect:
      - {status: DONE, batch_id: 4, stats: {rowsInserted: 1}}
  - name: second
    expect_error: DUPLICATE_ROWS
assertions:
  - type: count
    query: SELECT COUNT(*) FROM main
    count: 1
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "split", s.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "spec.cue"), s.Spec)
	assert.Equal(t, "orders", s.Ingestion)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, []map[string]any{{"id": 1}}, s.Steps[0].Staging)
	assert.Equal(t, []generator.DataSplitRange{{Lower: 1, Upper: 3}}, s.Steps[0].Splits)
	assert.Equal(t, "4", s.Steps[0].Placeholders["{BATCH_ID}"])
	assert.Equal(t, []BatchExpect{{Status: "DONE", BatchID: 4, Stats: map[string]int64{"rowsInserted": 1}}}, s.Steps[0].Expect)
	assert.Equal(t, "DUPLICATE_ROWS", s.Steps[1].ExpectError)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, int64(1), *s.Assertions[0].Count)

	start, err := s.StartTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC), start)
}

func TestScenario_DefaultStart(t *testing.T) {
	start, err := (&Scenario{}).StartTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	path := writeScenario(t, `
name: based
description: spec resolved against a base path
spec: spec.cue
steps:
  - name: only
`)
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "spec.cue"), []byte("ingest: {}\n"), 0o644))

	s, err := LoadScenarioWithBasePath(path, base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "spec.cue"), s.Spec)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown field",
			body: "name: x\ndescription: d\nspec: spec.cue\nsteps: [{name: a}]\nasserts: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			body: "description: d\nspec: spec.cue\nsteps: [{name: a}]\n",
			want: "name is required",
		},
		{
			name: "missing spec file",
			body: "name: x\ndescription: d\nspec: other.cue\nsteps: [{name: a}]\n",
			want: "spec file not found",
		},
		{
			name: "bad start",
			body: "name: x\ndescription: d\nspec: spec.cue\nstart: yesterday\nsteps: [{name: a}]\n",
			want: "start:",
		},
		{
			name: "no steps",
			body: "name: x\ndescription: d\nspec: spec.cue\n",
			want: "steps list is required",
		},
		{
			name: "unnamed step",
			body: "name: x\ndescription: d\nspec: spec.cue\nsteps: [{staging: []}]\n",
			want: "steps[0]: name is required",
		},
		{
			name: "expect and expect_error",
			body: "name: x\ndescription: d\nspec: spec.cue\nsteps: [{name: a, expect: [{status: DONE}], expect_error: EMPTY_BATCH}]\n",
			want: "mutually exclusive",
		},
		{
			name: "count without count",
			body: "name: x\ndescription: d\nspec: spec.cue\nsteps: [{name: a}]\nassertions: [{type: count, query: SELECT 1}]\n",
			want: "count assertion requires count",
		},
		{
			name: "unknown assertion",
			body: "name: x\ndescription: d\nspec: spec.cue\nsteps: [{name: a}]\nassertions: [{type: trace, query: SELECT 1}]\n",
			want: `unknown assertion type "trace"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
