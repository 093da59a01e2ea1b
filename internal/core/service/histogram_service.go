package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seqlab/taxhist/internal/core/domain"
	"github.com/seqlab/taxhist/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// HistogramService orchestrates the histogram engine (domain) against a
// sample source and a chart renderer (infrastructure). Every call loads
// fresh data and computes from scratch; nothing is cached between calls.
type HistogramService struct {
	hierarchy domain.Hierarchy
	source    port.SampleSource
	renderer  port.ChartRenderer
	auditor   port.OpAuditor
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewHistogramService(hierarchy domain.Hierarchy, source port.SampleSource, renderer port.ChartRenderer, auditor port.OpAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *HistogramService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	if auditor == nil {
		auditor = port.NoopAuditor{}
	}
	return &HistogramService{
		hierarchy: hierarchy,
		source:    source,
		renderer:  renderer,
		auditor:   auditor,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
	}
}

// Hierarchy returns the taxonomy hierarchy the service operates on.
func (s *HistogramService) Hierarchy() domain.Hierarchy {
	return append(domain.Hierarchy(nil), s.hierarchy...)
}

// SampleIDs loads the sample collection and returns its identifiers in
// iteration order.
func (s *HistogramService) SampleIDs(ctx context.Context) ([]string, error) {
	coll, err := s.source.LoadSamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading samples: %w", err)
	}
	return coll.IDs(), nil
}

// ComputeAll loads every sample and computes its per-level histograms,
// sequentially, emitting one progress marker per sample. The progress
// log is a pure side channel; the returned collection does not depend
// on it.
func (s *HistogramService) ComputeAll(ctx context.Context) (*domain.HistogramCollection, error) {
	ctx, span := s.tracer.Start(ctx, "HistogramService.ComputeAll",
		trace.WithAttributes(
			attribute.Int("taxhist.hierarchy.levels", len(s.hierarchy)),
		),
	)
	defer span.End()

	coll, err := s.source.LoadSamples(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementOpErrors(ctx)
		return nil, fmt.Errorf("loading samples: %w", err)
	}

	s.logger.InfoContext(ctx, "computing histograms across taxonomy hierarchy",
		slog.Int("samples", coll.Len()),
		slog.Int("levels", len(s.hierarchy)),
	)

	start := time.Now()
	out := domain.NewHistogramCollection()
	for _, id := range coll.IDs() {
		table, _ := coll.Get(id)
		set, err := domain.ComputeHistograms(s.hierarchy, table)
		if err != nil {
			err = fmt.Errorf("sample %q: %w", id, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.inst.IncrementOpErrors(ctx)
			s.audit(ctx, "compute", "", coll.Len(), 0, start, err)
			return nil, err
		}
		if err := out.Add(id, set); err != nil {
			return nil, err
		}
		s.logger.DebugContext(ctx, "sample histograms computed",
			slog.String("sample", id),
			slog.Int("records", table.NumRecords()),
		)
	}
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordComputeDuration(ctx, float64(durationMS))
	s.inst.IncrementComputeCount(ctx)
	s.audit(ctx, "compute", "", coll.Len(), 0, start, nil)
	span.SetAttributes(attribute.Int("taxhist.samples", out.Len()))

	return out, nil
}

// MergeLevel computes all histograms and merges them across samples at a
// single taxonomy level.
func (s *HistogramService) MergeLevel(ctx context.Context, level string) (*domain.Frame, error) {
	ctx, span := s.tracer.Start(ctx, "HistogramService.MergeLevel",
		trace.WithAttributes(
			attribute.String("taxhist.level", level),
		),
	)
	defer span.End()

	hc, err := s.ComputeAll(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "merging across samples",
		slog.String("level", level),
		slog.Int("samples", hc.Len()),
	)

	start := time.Now()
	merged, err := domain.MergeAcrossSamples(s.hierarchy, hc, level)
	s.audit(ctx, "merge_level", level, hc.Len(), rowCount(merged), start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementOpErrors(ctx)
		return nil, err
	}

	s.inst.IncrementMergeCount(ctx)
	span.SetAttributes(attribute.Int("taxhist.rows", merged.NumRows()))
	return merged, nil
}

// MergeAllLevels computes all histograms, merges every hierarchy level,
// and enriches the merged tables with sample metadata from the source
// when available.
func (s *HistogramService) MergeAllLevels(ctx context.Context) (map[string]*domain.Frame, error) {
	ctx, span := s.tracer.Start(ctx, "HistogramService.MergeAllLevels")
	defer span.End()

	hc, err := s.ComputeAll(ctx)
	if err != nil {
		return nil, err
	}

	metadata, err := s.source.LoadMetadata(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementOpErrors(ctx)
		return nil, fmt.Errorf("loading metadata: %w", err)
	}

	s.logger.InfoContext(ctx, "merging across samples for all levels",
		slog.Int("samples", hc.Len()),
		slog.Bool("metadata", metadata != nil),
	)

	start := time.Now()
	byLevel, err := domain.MergeAcrossSamplesTaxLevels(s.hierarchy, hc, metadata)
	s.audit(ctx, "merge_all", "", hc.Len(), len(byLevel), start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementOpErrors(ctx)
		return nil, err
	}

	s.inst.IncrementMergeCount(ctx)
	return byLevel, nil
}

// RenderChart merges one taxonomy level and writes a stacked bar chart
// for it to path.
func (s *HistogramService) RenderChart(ctx context.Context, level, path string) error {
	ctx, span := s.tracer.Start(ctx, "HistogramService.RenderChart",
		trace.WithAttributes(
			attribute.String("taxhist.level", level),
			attribute.String("taxhist.chart.path", path),
		),
	)
	defer span.End()

	merged, err := s.MergeLevel(ctx, level)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.renderer.Render(merged, path)
	s.audit(ctx, "render", level, len(merged.Columns()), merged.NumRows(), start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementOpErrors(ctx)
		return fmt.Errorf("rendering chart: %w", err)
	}

	s.logger.InfoContext(ctx, "chart written",
		slog.String("level", level),
		slog.String("path", path),
	)
	return nil
}

func (s *HistogramService) audit(ctx context.Context, op, level string, samples, rows int, start time.Time, err error) {
	if tool := toolNameFromCtx(ctx); tool != "" {
		op = tool + ":" + op
	}
	s.auditor.Record(ctx, port.OpEntry{
		Op:         op,
		Level:      level,
		Samples:    samples,
		Rows:       rows,
		DurationMS: time.Since(start).Milliseconds(),
		Err:        err,
	})
}

func rowCount(f *domain.Frame) int {
	if f == nil {
		return 0
	}
	return f.NumRows()
}
