package domain

import (
	"fmt"
	"sort"
)

// SampleTable holds the classification records of one sample: ordered
// columns, string cells, one row per classified entity. A record carries a
// value for every column; an empty string is the explicit null marker for
// an unassigned taxonomy level.
type SampleTable struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// NewSampleTable creates an empty table with the given column names.
func NewSampleTable(columns []string) (*SampleTable, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}
	return &SampleTable{
		columns: append([]string(nil), columns...),
		index:   index,
	}, nil
}

// AppendRecord adds one record. The number of values must match the
// number of columns.
func (t *SampleTable) AppendRecord(values ...string) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("record has %d values, table has %d columns", len(values), len(t.columns))
	}
	t.rows = append(t.rows, append([]string(nil), values...))
	return nil
}

// Columns returns the column names in order.
func (t *SampleTable) Columns() []string { return append([]string(nil), t.columns...) }

// NumRecords returns the number of records.
func (t *SampleTable) NumRecords() int { return len(t.rows) }

// ColumnIndex returns the position of the named column.
func (t *SampleTable) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Value returns the cell at record r, column position c.
func (t *SampleTable) Value(r, c int) string { return t.rows[r][c] }

// SampleCollection maps sample identifiers to their tables, preserving
// insertion order so that order-sensitive operations (the seed sample of a
// merge, merged column order) are deterministic.
type SampleCollection struct {
	ids    []string
	tables map[string]*SampleTable
}

// NewSampleCollection creates an empty collection.
func NewSampleCollection() *SampleCollection {
	return &SampleCollection{tables: make(map[string]*SampleTable)}
}

// Add registers a sample table under id. Identifiers must be unique.
func (c *SampleCollection) Add(id string, table *SampleTable) error {
	if _, dup := c.tables[id]; dup {
		return fmt.Errorf("duplicate sample %q", id)
	}
	c.ids = append(c.ids, id)
	c.tables[id] = table
	return nil
}

// IDs returns the sample identifiers in iteration order.
func (c *SampleCollection) IDs() []string { return append([]string(nil), c.ids...) }

// Get returns the table for id.
func (c *SampleCollection) Get(id string) (*SampleTable, bool) {
	t, ok := c.tables[id]
	return t, ok
}

// Len returns the number of samples.
func (c *SampleCollection) Len() int { return len(c.ids) }

// Sort fixes the iteration order to lexicographic sample id. Useful when
// the collection was assembled from an unordered source and downstream
// consumers need reproducible column order.
func (c *SampleCollection) Sort() {
	sort.Strings(c.ids)
}
