package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/milestone/internal/ingestmode"
)

// execute runs cmd with args and returns its stdout.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newCmd(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidate_Valid(t *testing.T) {
	dir := writeFiles(t, map[string]string{"history.cue": historyCUE, "accounts.cue": accountsCUE})

	out, err := execute(t, NewValidateCommand, "text", dir)
	require.NoError(t, err)
	assert.Equal(t, "✓ 2 ingestion(s) valid\n  1. accounts\n  2. history\n", out)
}

func TestValidate_ValidJSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{"accounts.cue": accountsCUE})

	out, err := execute(t, NewValidateCommand, "json", filepath.Join(dir, "accounts.cue"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"accounts"}, resp.Data.Order)
}

func TestValidate_Failures(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"nodigest.cue": noDigestCUE,
		"loop.cue":     loopCUE,
		"bad.cue":      "ingest: x: {mode: {kind: \"Sideways\"}}\n",
	})

	tests := []struct {
		name  string
		paths []string
		codes []string
	}{
		{
			name:  "mode validation",
			paths: []string{filepath.Join(dir, "nodigest.cue")},
			codes: []string{ingestmode.ErrMissingDigest},
		},
		{
			name:  "cycle",
			paths: []string{filepath.Join(dir, "loop.cue")},
			codes: []string{ErrCodeCycle},
		},
		{
			name:  "compile error alongside a valid file",
			paths: []string{filepath.Join(dir, "bad.cue"), filepath.Join(dir, "nodigest.cue")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewValidateCommand, "json", tt.paths...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp struct {
				Status string           `json:"status"`
				Data   ValidationResult `json:"data"`
				Error  CLIError         `json:"error"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.False(t, resp.Data.Valid)
			require.NotEmpty(t, resp.Data.Errors)
			assert.Equal(t, resp.Data.Errors[0].Code, resp.Error.Code)

			var codes []string
			for _, e := range resp.Data.Errors {
				codes = append(codes, e.Code)
			}
			for _, c := range tt.codes {
				assert.Contains(t, codes, c)
			}
		})
	}
}

func TestValidate_Text(t *testing.T) {
	dir := writeFiles(t, map[string]string{"loop.cue": loopCUE})

	out, err := execute(t, NewValidateCommand, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E110: a.staging: ingestion cycle: a -> b -> a")
}

func TestValidate_CommandErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{"empty/notes.txt": ""})

	tests := []struct {
		name string
		path string
		code string
	}{
		{name: "missing path", path: filepath.Join(dir, "missing"), code: ErrCodeNotFound},
		{name: "no cue files", path: filepath.Join(dir, "empty"), code: ErrCodeNoFiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewValidateCommand, "text", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestValidate_Verbose(t *testing.T) {
	dir := writeFiles(t, map[string]string{"accounts.cue": accountsCUE})

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json", Verbose: true})
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, errOut.String(), "Found 1 ingest definition(s) in 1 CUE file(s)")
	assert.Contains(t, errOut.String(), "Validating ingestion: accounts")
	assert.True(t, json.Valid(out.Bytes()))
}
