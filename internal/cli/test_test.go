package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")

// copyScenario copies a harness scenario and its spec into a fresh directory.
func copyScenario(t *testing.T, scenario, spec string) string {
	t.Helper()
	files := map[string]string{}
	for _, name := range []string{scenario, spec} {
		data, err := os.ReadFile(filepath.Join(scenariosDir, name))
		require.NoError(t, err)
		files[name] = string(data)
	}
	return writeFiles(t, files)
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand, "text", scenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ duplicate-rows\n")
	assert.Contains(t, out, "✓ data-split\n")
	assert.Contains(t, out, " passed, 0 failed, ")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_FilterJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand, "json", scenariosDir, "--filter", "duplicate*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, TestResult{
		Scenarios: []ScenarioResult{{Name: "duplicate-rows", Pass: true}},
		Passed:    1,
		Total:     1,
	}, resp.Data)
}

func TestTestCommand_Golden(t *testing.T) {
	dir := copyScenario(t, "duplicate_rows.yaml", "accounts_dedup.cue")
	golden := filepath.Join(dir, "golden", "duplicate_rows.golden")

	_, err := execute(t, NewTestCommand, "text", dir, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(golden)
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "golden", "duplicate-rows.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	out, err := execute(t, NewTestCommand, "text", dir)
	require.NoError(t, err, out)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err = execute(t, NewTestCommand, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ duplicate-rows\n  batch outcomes do not match golden file")
}

func TestTestCommand_SpecsDir(t *testing.T) {
	dir := copyScenario(t, "duplicate_rows.yaml", "accounts_dedup.cue")
	specs := t.TempDir()
	require.NoError(t, os.Rename(filepath.Join(dir, "accounts_dedup.cue"), filepath.Join(specs, "accounts_dedup.cue")))

	out, err := execute(t, NewTestCommand, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "failed to load scenario")

	out, err = execute(t, NewTestCommand, "text", dir, specs)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ duplicate-rows")
}

func TestTestCommand_Failures(t *testing.T) {
	dir := copyScenario(t, "duplicate_rows.yaml", "accounts_dedup.cue")
	path := filepath.Join(dir, "duplicate_rows.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), "count: 1", "count: 3", 1)), 0o644))

	out, err := execute(t, NewTestCommand, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios[0].Errors, 1)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "Expected: 3")
}

func TestTestCommand_Arguments(t *testing.T) {
	tmp := t.TempDir()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing args", args: []string{}, want: "accepts between 1 and 2 arg(s)"},
		{name: "missing scenarios dir", args: []string{filepath.Join(tmp, "nope")}, want: "scenarios directory not found"},
		{name: "missing specs dir", args: []string{tmp, filepath.Join(tmp, "nope")}, want: "specs directory not found"},
		{name: "bad filter", args: []string{scenariosDir, "--filter", "["}, want: "invalid filter pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewTestCommand, "text", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand, "text", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)

	out, err = execute(t, NewTestCommand, "json", t.TempDir())
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestFindScenarioFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"customers-delta.yaml": "",
		"customers-split.yml":  "",
		"sub/orders.yaml":      "",
		"notes.txt":            "",
	})

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = findScenarioFiles(dir, "customers-*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "customers-delta.yaml"),
		filepath.Join(dir, "customers-split.yml"),
	}, files)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.input))
	}
}
