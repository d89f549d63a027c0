package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "milestone", cmd.Use)
	assert.Contains(t, cmd.Long, "staging table")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"plan", "validate", "ingest", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flag    string
		def     string
	}{
		{"plan", "ingestion", ""},
		{"plan", "dialect", "ansi"},
		{"plan", "batch-time", ""},
		{"plan", "empty-batch", "false"},
		{"plan", "placeholder", "[]"},
		{"plan", "output", ""},
		{"ingest", "driver", "sqlite"},
		{"ingest", "dsn", ""},
		{"ingest", "metrics-out", ""},
		{"ingest", "before", "[]"},
		{"ingest", "after", "[]"},
		{"test", "update", "false"},
		{"test", "filter", ""},
	}
	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}

	plan, _, err := root.Find([]string{"plan"})
	require.NoError(t, err)
	assert.Equal(t, "o", plan.Flags().Lookup("output").Shorthand)
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "validate", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootOptions_Logger(t *testing.T) {
	tests := []struct {
		name    string
		opts    RootOptions
		wantOut bool
		json    bool
	}{
		{name: "quiet text", opts: RootOptions{Format: "text"}},
		{name: "verbose text", opts: RootOptions{Format: "text", Verbose: true}, wantOut: true},
		{name: "verbose json", opts: RootOptions{Format: "json", Verbose: true}, wantOut: true, json: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.opts.Logger(buf).Info("batch committed", "table", "customers")

			if !tt.wantOut {
				assert.Empty(t, buf.String())
				return
			}
			if tt.json {
				var rec map[string]any
				require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
				assert.Equal(t, "customers", rec["table"])
				return
			}
			assert.Contains(t, buf.String(), "table=customers")
		})
	}
}
