package domain

import (
	"fmt"
)

// MergeAcrossSamples joins every sample's percentages at one taxonomy
// level into a single wide frame: rows are the union of all samples'
// prefix tuples, one column per sample holding that sample's percent, nil
// where a sample never saw the prefix. The first sample in iteration order
// seeds the fold; each subsequent sample is outer-joined on the row keys.
// Column order follows the collection's iteration order.
func MergeAcrossSamples(h Hierarchy, coll *HistogramCollection, level string) (*Frame, error) {
	if !h.Contains(level) {
		return nil, h.unknownLevelError(level)
	}
	if err := coll.Validate(); err != nil {
		return nil, err
	}

	var merged *Frame
	for _, id := range coll.ids {
		hist, ok := coll.sets[id][level]
		if !ok {
			return nil, fmt.Errorf("sample %q has no histogram for level %q", id, level)
		}
		dropped, err := hist.Drop(ColumnCount)
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", id, err)
		}
		column, err := dropped.Rename(ColumnPercent, id)
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", id, err)
		}
		if merged == nil {
			merged = column
			continue
		}
		merged, err = merged.OuterJoin(column)
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", id, err)
		}
	}
	return merged, nil
}

// MergeAcrossSamplesTaxLevels merges every hierarchy level and, when a
// metadata frame is supplied, enriches each merged table with the sample
// metadata. Metadata is keyed by sample identifier; each metadata column
// surfaces as an extra row of the merged table (one value per sample
// column, nil for samples without a metadata entry — left-join semantics,
// so metadata rows for unknown samples are dropped). A nil metadata frame
// is a pass-through: the merged tables come back unenriched.
//
// Each returned frame has its index levels named with the hierarchy prefix
// of matching length. The result maps level name to frame; iterate the
// hierarchy for a defined order.
func MergeAcrossSamplesTaxLevels(h Hierarchy, coll *HistogramCollection, metadata *Frame) (map[string]*Frame, error) {
	if err := coll.Validate(); err != nil {
		return nil, err
	}

	out := make(map[string]*Frame, len(h))
	for i, level := range h {
		merged, err := MergeAcrossSamples(h, coll, level)
		if err != nil {
			return nil, err
		}
		enriched := merged.WithIndexNames(h[:i+1])
		if metadata != nil {
			enriched, err = appendMetadataRows(enriched, metadata)
			if err != nil {
				return nil, fmt.Errorf("level %q: %w", level, err)
			}
		}
		out[level] = enriched
	}
	return out, nil
}

// appendMetadataRows adds one row per metadata column to a merged frame
// whose columns are sample identifiers.
func appendMetadataRows(merged, metadata *Frame) (*Frame, error) {
	samples := merged.Columns()
	for _, metaCol := range metadata.Columns() {
		values := make([]any, len(samples))
		for j, sample := range samples {
			if v, ok := metadata.Cell(Key{sample}, metaCol); ok {
				values[j] = v
			}
		}
		if err := merged.AppendRow(Key{metaCol}, values...); err != nil {
			return nil, fmt.Errorf("metadata column %q: %w", metaCol, err)
		}
	}
	return merged, nil
}
