package port

import (
	"context"

	"github.com/seqlab/taxhist/internal/core/domain"
)

// SampleSource loads classification tables and sample metadata from some
// backing store (TSV directory, sweep manifest, Postgres). Implementations
// must return collections with a deterministic iteration order.
type SampleSource interface {
	// LoadSamples returns the full sample collection.
	LoadSamples(ctx context.Context) (*domain.SampleCollection, error)

	// LoadMetadata returns the sample metadata frame, keyed by sample
	// identifier. (nil, nil) when no metadata is configured.
	LoadMetadata(ctx context.Context) (*domain.Frame, error)
}
