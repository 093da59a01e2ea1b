package domain

import (
	"fmt"
	"strings"
)

// Key is a prefix tuple of taxonomy values identifying one row of a Frame.
// At hierarchy level i the key holds the values for levels 0..i.
type Key []string

// String renders the key for display. Single-value keys print bare;
// compound keys join their parts with "|".
func (k Key) String() string {
	return strings.Join(k, "|")
}

// Equal reports whether two keys have the same arity and values.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// id is the map-safe encoding of a key. The unit separator cannot occur in
// values read from tab- or comma-separated input.
func (k Key) id() string {
	return strings.Join(k, "\x1f")
}

// Frame is a keyed analytic table: ordered columns, rows identified by Key
// in insertion order, nullable cells (nil means absent). Every
// transformation returns a new Frame; producers never mutate an input.
//
// Index levels carry names (e.g. the hierarchy prefix ["domain","phylum"]).
// Row keys are opaque tuples and are not required to match the index arity:
// a metadata row appended to a merged table keeps its single-part key even
// when the taxa rows carry compound keys, mirroring the mixed index that
// falls out of joining sample metadata onto a transposed histogram.
type Frame struct {
	indexNames []string
	columns    []string
	keys       []Key
	cells      [][]any
	rowByKey   map[string]int
}

// NewFrame creates an empty frame with the given index level names and
// column names. Column names must be unique.
func NewFrame(indexNames, columns []string) (*Frame, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = true
	}
	return &Frame{
		indexNames: append([]string(nil), indexNames...),
		columns:    append([]string(nil), columns...),
		rowByKey:   make(map[string]int),
	}, nil
}

// AppendRow adds a row under key. The number of values must match the
// number of columns and the key must not already be present.
func (f *Frame) AppendRow(key Key, values ...any) error {
	if len(values) != len(f.columns) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.columns))
	}
	id := key.id()
	if _, exists := f.rowByKey[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key.String())
	}
	f.rowByKey[id] = len(f.keys)
	f.keys = append(f.keys, append(Key(nil), key...))
	f.cells = append(f.cells, append([]any(nil), values...))
	return nil
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int { return len(f.keys) }

// Columns returns the column names in order.
func (f *Frame) Columns() []string { return append([]string(nil), f.columns...) }

// IndexNames returns the index level names in order.
func (f *Frame) IndexNames() []string { return append([]string(nil), f.indexNames...) }

// Keys returns the row keys in order.
func (f *Frame) Keys() []Key {
	out := make([]Key, len(f.keys))
	for i, k := range f.keys {
		out[i] = append(Key(nil), k...)
	}
	return out
}

// HasKey reports whether a row exists under key.
func (f *Frame) HasKey(key Key) bool {
	_, ok := f.rowByKey[key.id()]
	return ok
}

// Cell returns the value at (key, column). The second return is false when
// either the row or the column does not exist; a nil value with true means
// the cell is present but null.
func (f *Frame) Cell(key Key, column string) (any, bool) {
	r, ok := f.rowByKey[key.id()]
	if !ok {
		return nil, false
	}
	c, ok := f.columnIndex(column)
	if !ok {
		return nil, false
	}
	return f.cells[r][c], true
}

// Column returns all values of one column in row order.
func (f *Frame) Column(name string) ([]any, error) {
	c, ok := f.columnIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]any, len(f.cells))
	for i, row := range f.cells {
		out[i] = row[c]
	}
	return out, nil
}

func (f *Frame) columnIndex(name string) (int, bool) {
	for i, c := range f.columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Drop returns a new frame without the named column.
func (f *Frame) Drop(column string) (*Frame, error) {
	c, ok := f.columnIndex(column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	cols := make([]string, 0, len(f.columns)-1)
	cols = append(cols, f.columns[:c]...)
	cols = append(cols, f.columns[c+1:]...)
	out, err := NewFrame(f.indexNames, cols)
	if err != nil {
		return nil, err
	}
	for i, key := range f.keys {
		vals := make([]any, 0, len(cols))
		vals = append(vals, f.cells[i][:c]...)
		vals = append(vals, f.cells[i][c+1:]...)
		if err := out.AppendRow(key, vals...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Rename returns a new frame with column old renamed to new.
func (f *Frame) Rename(old, new string) (*Frame, error) {
	c, ok := f.columnIndex(old)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, old)
	}
	cols := append([]string(nil), f.columns...)
	cols[c] = new
	out, err := NewFrame(f.indexNames, cols)
	if err != nil {
		return nil, err
	}
	for i, key := range f.keys {
		if err := out.AppendRow(key, f.cells[i]...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// OuterJoin merges two frames on their row keys, keeping the full union:
// left rows first in their order, then right-only rows in theirs. Cells
// missing on either side are nil. Column sets must be disjoint.
func (f *Frame) OuterJoin(other *Frame) (*Frame, error) {
	for _, c := range other.columns {
		if _, exists := f.columnIndex(c); exists {
			return nil, fmt.Errorf("join column collision: %q present on both sides", c)
		}
	}
	cols := make([]string, 0, len(f.columns)+len(other.columns))
	cols = append(cols, f.columns...)
	cols = append(cols, other.columns...)
	out, err := NewFrame(f.indexNames, cols)
	if err != nil {
		return nil, err
	}
	for i, key := range f.keys {
		vals := make([]any, 0, len(cols))
		vals = append(vals, f.cells[i]...)
		if r, ok := other.rowByKey[key.id()]; ok {
			vals = append(vals, other.cells[r]...)
		} else {
			vals = append(vals, make([]any, len(other.columns))...)
		}
		if err := out.AppendRow(key, vals...); err != nil {
			return nil, err
		}
	}
	for i, key := range other.keys {
		if _, ok := f.rowByKey[key.id()]; ok {
			continue
		}
		vals := make([]any, 0, len(cols))
		vals = append(vals, make([]any, len(f.columns))...)
		vals = append(vals, other.cells[i]...)
		if err := out.AppendRow(key, vals...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WithIndexNames returns a copy of the frame with the index levels renamed.
// The copy owns its bookkeeping, so appending to it leaves the original
// untouched.
func (f *Frame) WithIndexNames(names []string) *Frame {
	byKey := make(map[string]int, len(f.rowByKey))
	for k, v := range f.rowByKey {
		byKey[k] = v
	}
	return &Frame{
		indexNames: append([]string(nil), names...),
		columns:    append([]string(nil), f.columns...),
		keys:       f.keys[:len(f.keys):len(f.keys)],
		cells:      f.cells[:len(f.cells):len(f.cells)],
		rowByKey:   byKey,
	}
}
