package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// accountsCUE reads accounts_stage into accounts.
const accountsCUE = `ingest: accounts: {
	mode: {
		kind:   "UnitemporalDelta"
		digest: "digest"
		transaction_milestoning: kind: "BatchId"
		deduplication: "FailOnDuplicates"
	}
	main: name: "accounts"
	staging: {
		name: "accounts_stage"
		fields: [
			{name: "id", type: "INTEGER", primary_key: true},
			{name: "name", type: "VARCHAR", length: 64},
			{name: "digest", type: "VARCHAR", length: 64},
		]
	}
	options: collect_statistics: true
}
`

// historyCUE reads the accounts main table, so it runs after accounts.
const historyCUE = `ingest: history: {
	mode: {
		kind:   "UnitemporalSnapshot"
		digest: "digest"
		transaction_milestoning: kind: "BatchId"
	}
	main: name: "accounts_history"
	staging: {
		name: "accounts"
		fields: [
			{name: "id", type: "INTEGER", primary_key: true},
			{name: "digest", type: "VARCHAR", length: 64},
		]
	}
}
`

// noDigestCUE compiles but fails validation: snapshots need a digest.
const noDigestCUE = `ingest: nodigest: {
	mode: {
		kind: "UnitemporalSnapshot"
		transaction_milestoning: kind: "BatchId"
	}
	main: name: "nodigest"
	staging: {
		name: "nodigest_stage"
		fields: [{name: "id", type: "INTEGER", primary_key: true}]
	}
}
`

// loopCUE holds two definitions feeding each other.
const loopCUE = `ingest: a: {
	mode: {kind: "UnitemporalSnapshot", digest: "digest", transaction_milestoning: kind: "BatchId"}
	main: name: "y"
	staging: {name: "x", fields: [{name: "id", type: "INTEGER", primary_key: true}, {name: "digest", type: "VARCHAR"}]}
}
ingest: b: {
	mode: {kind: "UnitemporalSnapshot", digest: "digest", transaction_milestoning: kind: "BatchId"}
	main: name: "x"
	staging: {name: "y", fields: [{name: "id", type: "INTEGER", primary_key: true}, {name: "digest", type: "VARCHAR"}]}
}
`

// writeFiles writes name -> content into a fresh directory and returns it.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func definitionNamesOf(r *LoadResult) []string {
	var out []string
	for _, d := range r.Definitions {
		out = append(out, d.Name)
	}
	return out
}

func TestLoadPaths(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"accounts.cue":     accountsCUE,
		"single/only.cue":  historyCUE,
		"history/hist.cue": historyCUE,
	})

	t.Run("file", func(t *testing.T) {
		r, errs := LoadPaths(context.Background(), []string{filepath.Join(dir, "accounts.cue")}, LoadModeCollectAll)
		require.Empty(t, errs)
		assert.Equal(t, []string{"accounts"}, definitionNamesOf(r))
		assert.Equal(t, 1, r.FileCount)
	})

	t.Run("file and directory keep path order", func(t *testing.T) {
		r, errs := LoadPaths(context.Background(), []string{
			filepath.Join(dir, "single"),
			filepath.Join(dir, "accounts.cue"),
		}, LoadModeCollectAll)
		require.Empty(t, errs)
		assert.Equal(t, []string{"history", "accounts"}, definitionNamesOf(r))
		assert.Equal(t, 2, r.FileCount)
	})

	t.Run("duplicate names across paths", func(t *testing.T) {
		r, errs := LoadPaths(context.Background(), []string{
			filepath.Join(dir, "single"),
			filepath.Join(dir, "history"),
		}, LoadModeCollectAll)
		require.NotNil(t, r)
		require.Len(t, errs, 1)
		var le *LoadError
		require.True(t, errors.As(errs[0], &le))
		assert.Equal(t, ErrCodeDuplicateName, le.Code)
	})
}

func TestLoadPaths_Errors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"empty/README.md": "nothing here",
		"bad.cue":         "ingest: x: {mode: kind: \"Nope\"\n",
	})

	tests := []struct {
		name  string
		paths []string
		code  string
	}{
		{name: "no paths", code: ErrCodeNotFound},
		{name: "missing", paths: []string{filepath.Join(dir, "missing.cue")}, code: ErrCodeNotFound},
		{name: "no cue files", paths: []string{filepath.Join(dir, "empty")}, code: ErrCodeNoFiles},
		{name: "syntax error", paths: []string{filepath.Join(dir, "bad.cue")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, errs := LoadPaths(context.Background(), tt.paths, LoadModeFailFast)
			assert.Nil(t, r)
			require.Len(t, errs, 1)
			if tt.code == "" {
				return
			}
			var le *LoadError
			require.True(t, errors.As(errs[0], &le))
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestLoadPaths_CollectAll(t *testing.T) {
	dir := writeFiles(t, map[string]string{"accounts.cue": accountsCUE})

	r, errs := LoadPaths(context.Background(), []string{
		filepath.Join(dir, "missing-a.cue"),
		filepath.Join(dir, "accounts.cue"),
		filepath.Join(dir, "missing-b.cue"),
	}, LoadModeCollectAll)
	require.NotNil(t, r)
	assert.Equal(t, []string{"accounts"}, definitionNamesOf(r))
	assert.Len(t, errs, 2)
}

func TestFindCUEFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.cue":      "",
		"sub/b.cue":  "",
		"sub/c.yaml": "",
		"notes.txt":  "",
	})
	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.cue"), filepath.Join(dir, "sub", "b.cue")}, files)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"ingest.customers.mode.kind", ErrCodeInvalidMode},
		{"ingest.customers.mode.versioning.field", ErrCodeInvalidMode},
		{"ingest.customers.staging.fields[0].type", ErrCodeInvalidDataset},
		{"ingest.customers.metadata.name", ErrCodeInvalidDataset},
		{"ingest.customers.options.case_conversion", ErrCodeInvalidOptions},
		{"ingest.customers.splits", ErrCodeInvalidSplits},
		{"ingest.mode.main", ErrCodeInvalidDataset},
		{"mode.kind", ErrCodeInvalidMode},
		{"ingest", ErrCodeGeneric},
		{"cue", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
