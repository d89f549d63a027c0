package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"table": "customers"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"table": "customers"}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("E005", "path not found", map[string]string{"path": "x.cue"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E005", resp.Error.Code)
	assert.Equal(t, "path not found", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Failure(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Failure([]string{"a"}, "DUPLICATE_ROWS", "duplicates"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, []any{"a"}, resp.Data)
	assert.Equal(t, "DUPLICATE_ROWS", resp.Error.Code)
}

func TestOutputFormatter_Text(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		write   func(f *OutputFormatter) error
		want    []string
		absent  []string
	}{
		{
			name:  "success",
			write: func(f *OutputFormatter) error { return f.Success("All ingestions valid") },
			want:  []string{"All ingestions valid"},
		},
		{
			name:   "error",
			write:  func(f *OutputFormatter) error { return f.Error("E001", "load failed", "ignored") },
			want:   []string{"Error [E001]: load failed"},
			absent: []string{"Details:"},
		},
		{
			name:    "error verbose",
			verbose: true,
			write:   func(f *OutputFormatter) error { return f.Error("E001", "load failed", "x.cue") },
			want:    []string{"Error [E001]: load failed", "Details: x.cue"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}
			require.NoError(t, tt.write(f))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, buf.String(), a)
			}
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			formatter.VerboseLog("Processing %s", "customers.cue")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Processing customers.cue")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestExitError(t *testing.T) {
	base := errors.New("connection refused")
	err := WrapExitError(ExitCommandError, "open executor", base)

	assert.EqualError(t, err, "open executor: connection refused")
	assert.ErrorIs(t, err, base)
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("run: %w", err)))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "1 scenario(s) failed")))
	assert.Equal(t, ExitFailure, GetExitCode(base))
}
