package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/milestone/internal/planner"
)

// DomainPlan prefixes plan fingerprints. The version suffix allows the
// algorithm to change without colliding with older fingerprints.
const DomainPlan = "milestone/plan/v1"

// GeneratorResult is the rendered SQL of one ingestion, grouped by phase.
type GeneratorResult struct {
	MainTable string `json:"main_table,omitempty"`

	// Skipped is set for an empty batch under NoOp: nothing should run.
	Skipped bool `json:"skipped,omitempty"`

	PreActionsSQL            []string          `json:"pre_actions,omitempty"`
	DeduplicateAndVersionSQL []string          `json:"deduplicate_and_version,omitempty"`
	DedupChecksSQL           []string          `json:"dedup_checks,omitempty"`
	IngestSQL                []string          `json:"ingest,omitempty"`
	MetadataIngestSQL        []string          `json:"metadata_ingest,omitempty"`
	PostActionsSQL           []string          `json:"post_actions,omitempty"`
	EmptyBatchSQL            []string          `json:"empty_batch,omitempty"`
	IncomingRecordCountSQL   string            `json:"incoming_record_count,omitempty"`
	LastBatchIDSQL           string            `json:"last_batch_id,omitempty"`
	Stats                    map[string]string `json:"stats,omitempty"`

	// Fingerprint identifies the exact statement list.
	Fingerprint string `json:"fingerprint"`
}

// Statements lists every statement in execution order: pre-actions,
// deduplication, checks, ingest, stats, metadata, post-actions. The
// incoming count and empty-batch statements come last. LastBatchIDSQL is a
// read-only lookup and is not part of the list.
func (r *GeneratorResult) Statements() []string {
	var out []string
	out = append(out, r.PreActionsSQL...)
	out = append(out, r.DeduplicateAndVersionSQL...)
	out = append(out, r.DedupChecksSQL...)
	out = append(out, r.IngestSQL...)
	for _, s := range planner.AllStats {
		if sql, ok := r.Stats[string(s)]; ok {
			out = append(out, sql)
		}
	}
	out = append(out, r.MetadataIngestSQL...)
	out = append(out, r.PostActionsSQL...)
	if r.IncomingRecordCountSQL != "" {
		out = append(out, r.IncomingRecordCountSQL)
	}
	return append(out, r.EmptyBatchSQL...)
}

// Bind returns a copy with every placeholder in values substituted.
func (r *GeneratorResult) Bind(values map[string]string) *GeneratorResult {
	rep := replacer(values)
	sub := func(ss []string) []string {
		if ss == nil {
			return nil
		}
		out := make([]string, len(ss))
		for i, s := range ss {
			out[i] = rep.Replace(s)
		}
		return out
	}
	b := &GeneratorResult{
		MainTable:                r.MainTable,
		Skipped:                  r.Skipped,
		PreActionsSQL:            sub(r.PreActionsSQL),
		DeduplicateAndVersionSQL: sub(r.DeduplicateAndVersionSQL),
		DedupChecksSQL:           sub(r.DedupChecksSQL),
		IngestSQL:                sub(r.IngestSQL),
		MetadataIngestSQL:        sub(r.MetadataIngestSQL),
		PostActionsSQL:           sub(r.PostActionsSQL),
		EmptyBatchSQL:            sub(r.EmptyBatchSQL),
		IncomingRecordCountSQL:   rep.Replace(r.IncomingRecordCountSQL),
		LastBatchIDSQL:           r.LastBatchIDSQL,
	}
	if r.Stats != nil {
		b.Stats = make(map[string]string, len(r.Stats))
		for k, v := range r.Stats {
			b.Stats[k] = rep.Replace(v)
		}
	}
	b.Fingerprint = b.fingerprint()
	return b
}

// Substitute replaces every placeholder token in sql.
func Substitute(sql string, values map[string]string) string {
	return replacer(values).Replace(sql)
}

// replacer orders tokens longest first so no token shadows another that
// contains it.
func replacer(values map[string]string) *strings.Replacer {
	keys := slices.Collect(maps.Keys(values))
	slices.SortFunc(keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, values[k])
	}
	return strings.NewReplacer(pairs...)
}

// fingerprint hashes the statement list with domain separation:
// SHA256(domain + 0x00 + stmt1 + 0x00 + stmt2 ...).
func (r *GeneratorResult) fingerprint() string {
	h := sha256.New()
	h.Write([]byte(DomainPlan))
	for _, s := range r.Statements() {
		h.Write([]byte{0x00})
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}
