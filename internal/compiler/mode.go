package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/milestone/internal/ingestmode"
)

// modeFields lists the mode fields each kind accepts beyond kind, digest,
// transaction_milestoning, deduplication, versioning and empty_batch.
var modeFields = map[string][]string{
	ingestmode.KindUnitemporalDelta:    {"delete_indicator", "data_split_field", "optimization_filters"},
	ingestmode.KindUnitemporalSnapshot: {"partition_fields", "partition_values"},
	ingestmode.KindBitemporalDelta:     {"validity", "delete_indicator", "data_split_field"},
	ingestmode.KindBitemporalSnapshot:  {"validity"},
}

var kindSpecific = []string{
	"validity", "delete_indicator", "data_split_field",
	"optimization_filters", "partition_fields", "partition_values",
}

func (p *parser) mode(v cue.Value) (ingestmode.IngestMode, error) {
	kind := p.str(v, "kind")
	if err := p.allowed(v, kind); err != nil {
		return nil, err
	}

	digest := p.str(v, "digest")
	tm := p.milestoning(v.LookupPath(cue.ParsePath("transaction_milestoning")))
	dedup := dedupStrategy(p.str(v, "deduplication"))
	vs, err := p.versioning(v.LookupPath(cue.ParsePath("versioning")))
	if err != nil {
		return nil, err
	}
	empty := emptyHandling(p.str(v, "empty_batch"))

	switch kind {
	case ingestmode.KindUnitemporalDelta:
		return ingestmode.UnitemporalDelta{
			DigestField:            digest,
			TransactionMilestoning: tm,
			MergeStrategy:          p.merge(v),
			Deduplication:          dedup,
			Versioning:             vs,
			DataSplitField:         p.str(v, "data_split_field"),
			OptimizationFilters:    p.strs(v, "optimization_filters"),
			EmptyHandling:          empty,
		}, nil
	case ingestmode.KindUnitemporalSnapshot:
		var values map[string][]string
		if pv := v.LookupPath(cue.ParsePath("partition_values")); pv.Exists() {
			p.keep(pv.Decode(&values))
		}
		return ingestmode.UnitemporalSnapshot{
			DigestField:            digest,
			TransactionMilestoning: tm,
			PartitionFields:        p.strs(v, "partition_fields"),
			PartitionValues:        values,
			Deduplication:          dedup,
			Versioning:             vs,
			EmptyHandling:          empty,
		}, nil
	case ingestmode.KindBitemporalDelta:
		return ingestmode.BitemporalDelta{
			DigestField:            digest,
			TransactionMilestoning: tm,
			ValidityMilestoning:    p.validity(v.LookupPath(cue.ParsePath("validity"))),
			MergeStrategy:          p.merge(v),
			Deduplication:          dedup,
			Versioning:             vs,
			DataSplitField:         p.str(v, "data_split_field"),
			EmptyHandling:          empty,
		}, nil
	case ingestmode.KindBitemporalSnapshot:
		return ingestmode.BitemporalSnapshot{
			DigestField:            digest,
			TransactionMilestoning: tm,
			ValidityMilestoning:    p.validity(v.LookupPath(cue.ParsePath("validity"))),
			Deduplication:          dedup,
			Versioning:             vs,
			EmptyHandling:          empty,
		}, nil
	}
	return nil, p.fail(v, "mode.kind", "unknown ingest mode %q", kind)
}

// allowed rejects kind-specific fields the kind does not take.
func (p *parser) allowed(v cue.Value, kind string) error {
	accepted := map[string]bool{}
	for _, f := range modeFields[kind] {
		accepted[f] = true
	}
	for _, f := range kindSpecific {
		fv := v.LookupPath(cue.ParsePath(f))
		if fv.Exists() && !accepted[f] {
			return p.fail(fv, "mode."+f, "%s is not supported by %s", f, kind)
		}
	}
	return nil
}

// milestoning returns nil when absent; validation reports it.
func (p *parser) milestoning(v cue.Value) ingestmode.TransactionMilestoning {
	if !v.Exists() {
		return nil
	}
	or := func(path, def string) string {
		if s := p.str(v, path); s != "" {
			return s
		}
		return def
	}
	switch p.str(v, "kind") {
	case "BatchId":
		return ingestmode.BatchID{
			InField:  or("batch_id_in", ingestmode.DefaultBatchIDIn),
			OutField: or("batch_id_out", ingestmode.DefaultBatchIDOut),
		}
	case "DateTime":
		return ingestmode.TransactionDateTime{
			InField:  or("date_time_in", ingestmode.DefaultBatchTimeIn),
			OutField: or("date_time_out", ingestmode.DefaultBatchTimeOut),
		}
	case "BatchIdAndDateTime":
		return ingestmode.BatchIDAndDateTime{
			BatchIDInField:   or("batch_id_in", ingestmode.DefaultBatchIDIn),
			BatchIDOutField:  or("batch_id_out", ingestmode.DefaultBatchIDOut),
			DateTimeInField:  or("date_time_in", ingestmode.DefaultBatchTimeIn),
			DateTimeOutField: or("date_time_out", ingestmode.DefaultBatchTimeOut),
		}
	}
	return nil
}

func (p *parser) validity(v cue.Value) ingestmode.ValidDateTime {
	if !v.Exists() {
		return ingestmode.ValidDateTime{}
	}
	vd := ingestmode.ValidDateTime{
		FromField:    p.str(v, "from"),
		ThroughField: p.str(v, "through"),
	}
	from, through := p.str(v, "source_from"), p.str(v, "source_through")
	if through == "" {
		vd.Derivation = ingestmode.SourceSpecifiesFrom{FromField: from}
	} else {
		vd.Derivation = ingestmode.SourceSpecifiesFromAndThru{FromField: from, ThroughField: through}
	}
	return vd
}

func (p *parser) merge(v cue.Value) ingestmode.MergeStrategy {
	di := v.LookupPath(cue.ParsePath("delete_indicator"))
	if !di.Exists() {
		return nil
	}
	return ingestmode.DeleteIndicator{
		Field:  p.str(di, "field"),
		Values: p.strs(di, "values"),
	}
}

func (p *parser) versioning(v cue.Value) (ingestmode.VersioningStrategy, error) {
	if !v.Exists() {
		return nil, nil
	}
	switch p.str(v, "kind") {
	case "NoVersioning":
		for _, f := range []string{"field", "resolver", "perform_stage_versioning"} {
			if fv := v.LookupPath(cue.ParsePath(f)); fv.Exists() {
				return nil, p.fail(fv, "mode.versioning."+f, "%s requires MaxVersion", f)
			}
		}
		return ingestmode.NoVersioning{
			FailOnDuplicatePrimaryKeys: p.boolean(v, "fail_on_duplicate_primary_keys"),
		}, nil
	case "MaxVersion":
		if fv := v.LookupPath(cue.ParsePath("fail_on_duplicate_primary_keys")); fv.Exists() {
			return nil, p.fail(fv, "mode.versioning.fail_on_duplicate_primary_keys", "fail_on_duplicate_primary_keys requires NoVersioning")
		}
		mv := ingestmode.MaxVersion{
			VersioningField:        p.str(v, "field"),
			PerformStageVersioning: p.boolean(v, "perform_stage_versioning"),
		}
		switch r := p.str(v, "resolver"); r {
		case "", "DigestBased":
			mv.Resolver = ingestmode.DigestBased{}
		default:
			mv.Resolver = ingestmode.VersionColumnBased{Comparator: ingestmode.VersionComparator(r)}
		}
		return mv, nil
	}
	return nil, nil
}

func dedupStrategy(s string) ingestmode.DeduplicationStrategy {
	switch s {
	case "FilterDuplicates":
		return ingestmode.FilterDuplicates{}
	case "FailOnDuplicates":
		return ingestmode.FailOnDuplicates{}
	case "AllowDuplicates":
		return ingestmode.AllowDuplicates{}
	}
	return nil
}

func emptyHandling(s string) ingestmode.EmptyDatasetHandling {
	switch s {
	case "NoOp":
		return ingestmode.NoOp{}
	case "FailEmptyBatch":
		return ingestmode.FailEmptyBatch{}
	case "DeleteTargetData":
		return ingestmode.DeleteTargetData{}
	}
	return nil
}
