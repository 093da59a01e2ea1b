package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordComputeDuration(ctx context.Context, ms float64)
	IncrementComputeCount(ctx context.Context)
	IncrementMergeCount(ctx context.Context)
	IncrementOpErrors(ctx context.Context)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordComputeDuration(context.Context, float64) {}
func (NoopInstrumentation) IncrementComputeCount(context.Context)          {}
func (NoopInstrumentation) IncrementMergeCount(context.Context)            {}
func (NoopInstrumentation) IncrementOpErrors(context.Context)              {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)    {}
