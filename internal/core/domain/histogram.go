package domain

import (
	"fmt"
	"sort"
)

// Column names of a level histogram.
const (
	ColumnCount   = "count"
	ColumnPercent = "percent"
)

// SampleSet maps each taxonomy level name to that sample's level
// histogram. Fully populated once computed: one entry per hierarchy level.
type SampleSet map[string]*Frame

// ComputeHistograms builds the per-level abundance histograms for one
// sample. For each hierarchy level i the records are grouped by the tuple
// of values at levels 0..i; each group yields a row with its size (count)
// and its share of all records (percent), sorted by descending count with
// ties kept in first-encounter order. An empty table yields empty
// histograms, not an error.
func ComputeHistograms(h Hierarchy, table *SampleTable) (SampleSet, error) {
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hierarchy: %w", err)
	}
	if table == nil {
		return nil, fmt.Errorf("sample table %w", ErrNilCollection)
	}

	positions := make([]int, len(h))
	for i, level := range h {
		pos, ok := table.ColumnIndex(level)
		if !ok {
			return nil, fmt.Errorf("%w: sample table has no column %q", ErrUnknownColumn, level)
		}
		positions[i] = pos
	}

	total := table.NumRecords()
	set := make(SampleSet, len(h))
	for i, level := range h {
		hist, err := levelHistogram(h[:i+1], table, positions[:i+1], total)
		if err != nil {
			return nil, fmt.Errorf("level %q: %w", level, err)
		}
		set[level] = hist
	}
	return set, nil
}

type prefixGroup struct {
	key   Key
	count int
}

func levelHistogram(prefix Hierarchy, table *SampleTable, positions []int, total int) (*Frame, error) {
	byID := make(map[string]*prefixGroup)
	var groups []*prefixGroup
	for r := 0; r < total; r++ {
		key := make(Key, len(positions))
		for j, pos := range positions {
			key[j] = table.Value(r, pos)
		}
		id := key.id()
		g, seen := byID[id]
		if !seen {
			g = &prefixGroup{key: key}
			byID[id] = g
			groups = append(groups, g)
		}
		g.count++
	}

	// Stable keeps first-encounter order among equal counts.
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].count > groups[b].count
	})

	hist, err := NewFrame(prefix, []string{ColumnCount, ColumnPercent})
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		percent := 100 * float64(g.count) / float64(total)
		if err := hist.AppendRow(g.key, g.count, percent); err != nil {
			return nil, err
		}
	}
	return hist, nil
}

// HistogramCollection maps sample identifiers to their SampleSets in
// insertion order — the aggregate output of processing a SampleCollection.
type HistogramCollection struct {
	ids  []string
	sets map[string]SampleSet
}

// NewHistogramCollection creates an empty collection.
func NewHistogramCollection() *HistogramCollection {
	return &HistogramCollection{sets: make(map[string]SampleSet)}
}

// Add registers a sample's histogram set under id.
func (c *HistogramCollection) Add(id string, set SampleSet) error {
	if _, dup := c.sets[id]; dup {
		return fmt.Errorf("duplicate sample %q", id)
	}
	c.ids = append(c.ids, id)
	c.sets[id] = set
	return nil
}

// IDs returns the sample identifiers in iteration order.
func (c *HistogramCollection) IDs() []string { return append([]string(nil), c.ids...) }

// Get returns the histogram set for id.
func (c *HistogramCollection) Get(id string) (SampleSet, bool) {
	s, ok := c.sets[id]
	return s, ok
}

// Len returns the number of samples.
func (c *HistogramCollection) Len() int { return len(c.ids) }

// Validate is the precondition guard used by the merge entry points: a nil
// collection fails with ErrNilCollection, a collection with zero samples
// with ErrEmptyCollection.
func (c *HistogramCollection) Validate() error {
	if c == nil {
		return fmt.Errorf("histogram %w", ErrNilCollection)
	}
	if len(c.ids) == 0 {
		return fmt.Errorf("histogram %w", ErrEmptyCollection)
	}
	return nil
}

// ComputeAllSamples runs ComputeHistograms for every sample in the
// collection, in iteration order, with no computation shared between
// samples.
func ComputeAllSamples(h Hierarchy, coll *SampleCollection) (*HistogramCollection, error) {
	if coll == nil {
		return nil, fmt.Errorf("sample %w", ErrNilCollection)
	}
	out := NewHistogramCollection()
	for _, id := range coll.ids {
		set, err := ComputeHistograms(h, coll.tables[id])
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", id, err)
		}
		if err := out.Add(id, set); err != nil {
			return nil, err
		}
	}
	return out, nil
}
