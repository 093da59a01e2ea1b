package port

import "context"

// OpEntry represents a single auditable engine operation.
type OpEntry struct {
	Op         string // compute, merge_level, merge_all, render
	Level      string // taxonomy level, when the operation has one
	Samples    int    // number of samples processed
	Rows       int    // rows in the result table, when the operation has one
	DurationMS int64
	Err        error
}

// OpAuditor records engine operation audit events.
type OpAuditor interface {
	Record(ctx context.Context, entry OpEntry)
	Close() error
}

// NoopAuditor discards all audit entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, OpEntry) {}
func (NoopAuditor) Close() error                    { return nil }
