package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/seqlab/taxhist/internal/core/domain"
	"github.com/seqlab/taxhist/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock SampleSource ---

type mockSource struct {
	coll     *domain.SampleCollection
	metadata *domain.Frame
	loadErr  error
	metaErr  error
}

func (m *mockSource) LoadSamples(_ context.Context) (*domain.SampleCollection, error) {
	return m.coll, m.loadErr
}

func (m *mockSource) LoadMetadata(_ context.Context) (*domain.Frame, error) {
	return m.metadata, m.metaErr
}

// --- mock ChartRenderer ---

type mockRenderer struct {
	lastPath string
	lastRows int
	err      error
}

func (m *mockRenderer) Render(merged *domain.Frame, path string) error {
	m.lastPath = path
	m.lastRows = merged.NumRows()
	return m.err
}

// --- mock OpAuditor ---

type recordingAuditor struct {
	entries []port.OpEntry
}

func (a *recordingAuditor) Record(_ context.Context, entry port.OpEntry) {
	a.entries = append(a.entries, entry)
}

func (a *recordingAuditor) Close() error { return nil }

// --- helpers ---

var testHierarchy = domain.Hierarchy{"domain", "phylum"}

func testSource(t *testing.T) *mockSource {
	t.Helper()
	coll := domain.NewSampleCollection()

	s1, err := domain.NewSampleTable([]string{"domain", "phylum"})
	require.NoError(t, err)
	require.NoError(t, s1.AppendRecord("Bacteria", "Proteobacteria"))
	require.NoError(t, s1.AppendRecord("Bacteria", "Firmicutes"))
	require.NoError(t, s1.AppendRecord("Archaea", "Euryarchaeota"))
	require.NoError(t, coll.Add("s1", s1))

	s2, err := domain.NewSampleTable([]string{"domain", "phylum"})
	require.NoError(t, err)
	require.NoError(t, s2.AppendRecord("Bacteria", "Proteobacteria"))
	require.NoError(t, coll.Add("s2", s2))

	return &mockSource{coll: coll}
}

func newService(source port.SampleSource, renderer port.ChartRenderer, auditor port.OpAuditor) *HistogramService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHistogramService(testHierarchy, source, renderer, auditor, logger, nil, nil)
}

// --- tests ---

func TestComputeAll(t *testing.T) {
	t.Parallel()
	svc := newService(testSource(t), nil, nil)

	hc, err := svc.ComputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, hc.IDs())

	set, ok := hc.Get("s1")
	require.True(t, ok)
	assert.Equal(t, 2, set["domain"].NumRows())
	assert.Equal(t, 3, set["phylum"].NumRows())
}

func TestComputeAll_SourceError(t *testing.T) {
	t.Parallel()
	svc := newService(&mockSource{loadErr: fmt.Errorf("disk on fire")}, nil, nil)

	_, err := svc.ComputeAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading samples")
}

func TestComputeAll_Audited(t *testing.T) {
	t.Parallel()
	auditor := &recordingAuditor{}
	svc := newService(testSource(t), nil, auditor)

	_, err := svc.ComputeAll(context.Background())
	require.NoError(t, err)

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, "compute", auditor.entries[0].Op)
	assert.Equal(t, 2, auditor.entries[0].Samples)
	assert.Nil(t, auditor.entries[0].Err)
}

func TestMergeLevel(t *testing.T) {
	t.Parallel()
	svc := newService(testSource(t), nil, nil)

	merged, err := svc.MergeLevel(context.Background(), "domain")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, merged.Columns())

	b2, _ := merged.Cell(domain.Key{"Bacteria"}, "s2")
	assert.InDelta(t, 100.0, b2.(float64), 1e-9)
	a2, ok := merged.Cell(domain.Key{"Archaea"}, "s2")
	require.True(t, ok)
	assert.Nil(t, a2)
}

func TestMergeLevel_UnknownLevel(t *testing.T) {
	t.Parallel()
	auditor := &recordingAuditor{}
	svc := newService(testSource(t), nil, auditor)

	_, err := svc.MergeLevel(context.Background(), "kingdom")
	require.ErrorIs(t, err, domain.ErrUnknownLevel)

	// compute succeeded, merge failed; both audited.
	require.Len(t, auditor.entries, 2)
	assert.Equal(t, "merge_level", auditor.entries[1].Op)
	assert.NotNil(t, auditor.entries[1].Err)
}

func TestMergeAllLevels_WithMetadata(t *testing.T) {
	t.Parallel()
	source := testSource(t)

	metadata, err := domain.NewFrame([]string{"sample"}, []string{"group"})
	require.NoError(t, err)
	require.NoError(t, metadata.AppendRow(domain.Key{"s1"}, "control"))
	source.metadata = metadata

	svc := newService(source, nil, nil)

	byLevel, err := svc.MergeAllLevels(context.Background())
	require.NoError(t, err)
	require.Len(t, byLevel, 2)

	g1, ok := byLevel["domain"].Cell(domain.Key{"group"}, "s1")
	require.True(t, ok)
	assert.Equal(t, "control", g1)
	g2, ok := byLevel["domain"].Cell(domain.Key{"group"}, "s2")
	require.True(t, ok)
	assert.Nil(t, g2)
}

func TestMergeAllLevels_NoMetadata(t *testing.T) {
	t.Parallel()
	svc := newService(testSource(t), nil, nil)

	byLevel, err := svc.MergeAllLevels(context.Background())
	require.NoError(t, err)
	assert.False(t, byLevel["domain"].HasKey(domain.Key{"group"}))
}

func TestMergeAllLevels_MetadataError(t *testing.T) {
	t.Parallel()
	source := testSource(t)
	source.metaErr = fmt.Errorf("bad metadata file")
	svc := newService(source, nil, nil)

	_, err := svc.MergeAllLevels(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading metadata")
}

func TestRenderChart(t *testing.T) {
	t.Parallel()
	renderer := &mockRenderer{}
	svc := newService(testSource(t), renderer, nil)

	err := svc.RenderChart(context.Background(), "domain", "/tmp/out.png")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.png", renderer.lastPath)
	assert.Equal(t, 2, renderer.lastRows)
}

func TestRenderChart_RendererError(t *testing.T) {
	t.Parallel()
	renderer := &mockRenderer{err: fmt.Errorf("encode failed")}
	svc := newService(testSource(t), renderer, nil)

	err := svc.RenderChart(context.Background(), "domain", "/tmp/out.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rendering chart")
}

func TestSampleIDs(t *testing.T) {
	t.Parallel()
	svc := newService(testSource(t), nil, nil)

	ids, err := svc.SampleIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)
}
