// Package tabfile loads classification tables and sample metadata from
// tab-separated files and writes analysis results back out as TSV.
package tabfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seqlab/taxhist/internal/core/domain"
)

// SampleRef points a sample identifier at its classification TSV file.
type SampleRef struct {
	ID   string
	Path string
}

// Source loads samples from TSV files, either by scanning a directory for
// *.tsv files or from an explicit list of sample references. It implements
// port.SampleSource.
type Source struct {
	dir          string
	samples      []SampleRef
	metadataPath string
}

// NewDirSource creates a source that scans dir for *.tsv files, using each
// file's base name (without extension) as the sample identifier.
func NewDirSource(dir, metadataPath string) *Source {
	return &Source{dir: dir, metadataPath: metadataPath}
}

// NewManifestSource creates a source that loads exactly the listed samples,
// in list order.
func NewManifestSource(samples []SampleRef, metadataPath string) *Source {
	return &Source{samples: samples, metadataPath: metadataPath}
}

// LoadSamples reads every sample's classification table.
func (s *Source) LoadSamples(ctx context.Context) (*domain.SampleCollection, error) {
	refs := s.samples
	if refs == nil {
		var err error
		refs, err = scanDir(s.dir)
		if err != nil {
			return nil, err
		}
	}

	coll := domain.NewSampleCollection()
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table, err := LoadSampleTable(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("loading sample %q: %w", ref.ID, err)
		}
		if err := coll.Add(ref.ID, table); err != nil {
			return nil, err
		}
	}
	return coll, nil
}

// LoadMetadata reads the sample metadata table, or returns (nil, nil) when
// no metadata file is configured.
func (s *Source) LoadMetadata(_ context.Context) (*domain.Frame, error) {
	if s.metadataPath == "" {
		return nil, nil
	}
	return LoadMetadata(s.metadataPath)
}

// scanDir lists *.tsv files in dir sorted by name, deriving each sample id
// from the file's base name.
func scanDir(dir string) ([]SampleRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning input dir: %w", err)
	}
	var refs []SampleRef
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tsv") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".tsv")
		refs = append(refs, SampleRef{ID: id, Path: filepath.Join(dir, e.Name())})
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no .tsv files found in %q", dir)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// LoadSampleTable reads one classification TSV. The first line is the
// header; every following line is one classified record. Empty cells are
// kept as-is (the empty string is the null marker for an unassigned level).
func LoadSampleTable(path string) (*domain.SampleTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	table, err := domain.NewSampleTable(header)
	if err != nil {
		return nil, err
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	for _, rec := range records {
		if err := table.AppendRecord(rec...); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// LoadMetadata reads a sample metadata TSV into a Frame keyed by sample id.
// The first header column names the sample-id column; the remaining columns
// are metadata attributes.
func LoadMetadata(path string) (*domain.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading metadata header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("metadata file needs a sample column and at least one attribute column")
	}

	frame, err := domain.NewFrame([]string{header[0]}, header[1:])
	if err != nil {
		return nil, err
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading metadata records: %w", err)
	}
	for _, rec := range records {
		vals := make([]any, len(rec)-1)
		for i, v := range rec[1:] {
			vals[i] = v
		}
		if err := frame.AppendRow(domain.Key{rec[0]}, vals...); err != nil {
			return nil, fmt.Errorf("metadata row %q: %w", rec[0], err)
		}
	}
	return frame, nil
}
