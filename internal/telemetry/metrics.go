package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/seqlab/taxhist"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	ComputeCount    metric.Int64Counter
	ComputeDuration metric.Float64Histogram
	MergeCount      metric.Int64Counter
	OpErrors        metric.Int64Counter
	ToolDuration    metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
// Returns nil-safe instruments: if creation fails, noop instruments are used.
func NewInstruments() *Instruments {
	meter := otel.Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	meter := noop.NewMeterProvider().Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	computeCount, _ := meter.Int64Counter("taxhist.compute.count",
		metric.WithDescription("Total number of histogram sweep computations"),
	)
	computeDuration, _ := meter.Float64Histogram("taxhist.compute.duration",
		metric.WithDescription("Histogram sweep computation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	mergeCount, _ := meter.Int64Counter("taxhist.merge.count",
		metric.WithDescription("Total number of cross-sample merges"),
	)
	opErrors, _ := meter.Int64Counter("taxhist.op.errors",
		metric.WithDescription("Total number of failed engine operations"),
	)
	toolDuration, _ := meter.Float64Histogram("taxhist.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		ComputeCount:    computeCount,
		ComputeDuration: computeDuration,
		MergeCount:      mergeCount,
		OpErrors:        opErrors,
		ToolDuration:    toolDuration,
	}
}

func (i *Instruments) RecordComputeDuration(ctx context.Context, ms float64) {
	i.ComputeDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementComputeCount(ctx context.Context) {
	i.ComputeCount.Add(ctx, 1)
}

func (i *Instruments) IncrementMergeCount(ctx context.Context) {
	i.MergeCount.Add(ctx, 1)
}

func (i *Instruments) IncrementOpErrors(ctx context.Context) {
	i.OpErrors.Add(ctx, 1)
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
