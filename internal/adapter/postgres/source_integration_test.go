package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/seqlab/taxhist/internal/adapter/postgres"
	"github.com/seqlab/taxhist/internal/core/domain"
)

const testSchema = `
	CREATE TABLE classifications (
		id        SERIAL PRIMARY KEY,
		sample_id TEXT NOT NULL,
		domain    TEXT,
		phylum    TEXT
	);

	CREATE TABLE sample_meta (
		sample_id TEXT PRIMARY KEY,
		grp       TEXT,
		depth_m   INTEGER
	);

	INSERT INTO classifications (sample_id, domain, phylum) VALUES
		('s1', 'Bacteria', 'Proteobacteria'),
		('s1', 'Bacteria', 'Proteobacteria'),
		('s1', 'Bacteria', 'Firmicutes'),
		('s2', 'Archaea',  'Euryarchaeota'),
		('s2', 'Bacteria', NULL);

	INSERT INTO sample_meta (sample_id, grp, depth_m) VALUES
		('s1', 'control',   10),
		('s2', 'treatment', NULL);
`

func setupSourceDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	return pool
}

func TestSource_LoadSamples(t *testing.T) {
	pool := setupSourceDB(t)
	hierarchy := domain.Hierarchy{"domain", "phylum"}
	src := postgres.NewSource(pool, hierarchy, "classifications", "sample_meta")

	coll, err := src.LoadSamples(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"s1", "s2"}, coll.IDs())

	s1, ok := coll.Get("s1")
	require.True(t, ok)
	assert.Equal(t, []string{"domain", "phylum"}, s1.Columns())
	assert.Equal(t, 3, s1.NumRecords())

	// NULL level values arrive as the empty-string unassigned marker.
	s2, ok := coll.Get("s2")
	require.True(t, ok)
	assert.Equal(t, 2, s2.NumRecords())
	c, ok := s2.ColumnIndex("phylum")
	require.True(t, ok)
	assert.Equal(t, "", s2.Value(1, c))
}

func TestSource_LoadMetadata(t *testing.T) {
	pool := setupSourceDB(t)
	hierarchy := domain.Hierarchy{"domain", "phylum"}
	src := postgres.NewSource(pool, hierarchy, "classifications", "sample_meta")

	meta, err := src.LoadMetadata(context.Background())
	require.NoError(t, err)
	require.NotNil(t, meta)

	assert.Equal(t, []string{"sample"}, meta.IndexNames())
	assert.Equal(t, []string{"grp", "depth_m"}, meta.Columns())

	v, ok := meta.Cell(domain.Key{"s1"}, "grp")
	require.True(t, ok)
	assert.Equal(t, "control", v)

	// Non-text attributes are rendered as text.
	v, ok = meta.Cell(domain.Key{"s1"}, "depth_m")
	require.True(t, ok)
	assert.Equal(t, "10", v)

	// NULL attribute stays a null cell.
	v, ok = meta.Cell(domain.Key{"s2"}, "depth_m")
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestSource_LoadMetadata_Unconfigured(t *testing.T) {
	pool := setupSourceDB(t)
	src := postgres.NewSource(pool, domain.Hierarchy{"domain"}, "classifications", "")

	meta, err := src.LoadMetadata(context.Background())
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestSource_ComputeEndToEnd(t *testing.T) {
	pool := setupSourceDB(t)
	hierarchy := domain.Hierarchy{"domain", "phylum"}
	src := postgres.NewSource(pool, hierarchy, "classifications", "")

	coll, err := src.LoadSamples(context.Background())
	require.NoError(t, err)

	all, err := domain.ComputeAllSamples(hierarchy, coll)
	require.NoError(t, err)

	set, ok := all.Get("s1")
	require.True(t, ok)
	hist := set["domain"]
	require.NotNil(t, hist)

	v, ok := hist.Cell(domain.Key{"Bacteria"}, domain.ColumnPercent)
	require.True(t, ok)
	assert.InDelta(t, 100.0, v.(float64), 1e-9)
}
