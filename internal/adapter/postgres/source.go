package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seqlab/taxhist/internal/core/domain"
)

// Source loads samples and metadata from PostgreSQL tables. It implements
// port.SampleSource.
//
// The classifications table holds one row per classified record with a
// sample_id column and one column per hierarchy level; NULL level values
// become the empty-string unassigned marker. The optional metadata table
// holds one row per sample.
type Source struct {
	pool      *pgxpool.Pool
	hierarchy domain.Hierarchy
	classTbl  string
	metaTbl   string
}

// NewSource creates a Source. metadataTable may be empty when the database
// carries no sample metadata.
func NewSource(pool *pgxpool.Pool, hierarchy domain.Hierarchy, classificationsTable, metadataTable string) *Source {
	return &Source{
		pool:      pool,
		hierarchy: hierarchy,
		classTbl:  classificationsTable,
		metaTbl:   metadataTable,
	}
}

// LoadSamples reads all classification records and groups them into
// per-sample tables. Samples come out ordered by id because the query
// orders by sample_id.
func (s *Source) LoadSamples(ctx context.Context) (*domain.SampleCollection, error) {
	rows, err := s.pool.Query(ctx, classificationsQuery(s.classTbl, s.hierarchy))
	if err != nil {
		return nil, fmt.Errorf("querying classifications: %w", err)
	}
	defer rows.Close()

	coll := domain.NewSampleCollection()
	var current *domain.SampleTable
	var currentID string

	for rows.Next() {
		dest := make([]any, 1+len(s.hierarchy))
		var sampleID string
		dest[0] = &sampleID
		levels := make([]*string, len(s.hierarchy))
		for i := range levels {
			dest[i+1] = &levels[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning classification record: %w", err)
		}

		if current == nil || sampleID != currentID {
			table, err := domain.NewSampleTable(s.hierarchy)
			if err != nil {
				return nil, err
			}
			if err := coll.Add(sampleID, table); err != nil {
				return nil, err
			}
			current = table
			currentID = sampleID
		}

		values := make([]string, len(levels))
		for i, v := range levels {
			if v != nil {
				values[i] = *v
			}
		}
		if err := current.AppendRecord(values...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading classifications: %w", err)
	}
	return coll, nil
}

// LoadMetadata reads the sample metadata table into a Frame keyed by sample
// id, or returns (nil, nil) when no metadata table is configured. Column
// names are discovered from the result set; the sample_id column becomes
// the frame index.
func (s *Source) LoadMetadata(ctx context.Context) (*domain.Frame, error) {
	if s.metaTbl == "" {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, metadataQuery(s.metaTbl))
	if err != nil {
		return nil, fmt.Errorf("querying metadata: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	idCol := -1
	columns := make([]string, 0, len(fields)-1)
	for i, fd := range fields {
		if fd.Name == sampleIDColumn {
			idCol = i
			continue
		}
		columns = append(columns, fd.Name)
	}
	if idCol < 0 {
		return nil, fmt.Errorf("metadata table %q has no %q column", s.metaTbl, sampleIDColumn)
	}

	frame, err := domain.NewFrame([]string{"sample"}, columns)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		raw, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scanning metadata row: %w", err)
		}
		id, ok := raw[idCol].(string)
		if !ok {
			return nil, fmt.Errorf("metadata %q column must be text, got %T", sampleIDColumn, raw[idCol])
		}
		values := make([]any, 0, len(columns))
		for i, v := range raw {
			if i == idCol {
				continue
			}
			values = append(values, normalizeValue(v))
		}
		if err := frame.AppendRow(domain.Key{id}, values...); err != nil {
			return nil, fmt.Errorf("metadata row %q: %w", id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	return frame, nil
}

// normalizeValue maps driver types onto the cell types the engine uses:
// NULL stays nil, text stays string, everything else is rendered as text so
// metadata attributes behave uniformly downstream.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
