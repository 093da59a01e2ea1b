package postgres

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// sampleIDColumn is the fixed column linking a classification record or a
// metadata row to its sample.
const sampleIDColumn = "sample_id"

// classificationsQuery builds the SELECT for all classification records,
// ordered by sample so rows group into per-sample tables in one pass.
// Identifiers come from configuration and hierarchy names, so they are
// quoted rather than parameterized.
func classificationsQuery(table string, hierarchy []string) string {
	cols := make([]string, 0, 1+len(hierarchy))
	cols = append(cols, pgx.Identifier{sampleIDColumn}.Sanitize())
	for _, level := range hierarchy {
		cols = append(cols, pgx.Identifier{level}.Sanitize())
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(pgx.Identifier{table}.Sanitize())
	b.WriteString(" ORDER BY ")
	b.WriteString(pgx.Identifier{sampleIDColumn}.Sanitize())
	return b.String()
}

// metadataQuery builds the SELECT for the full metadata table. Column names
// are discovered from the result set, so all columns are fetched.
func metadataQuery(table string) string {
	return "SELECT * FROM " + pgx.Identifier{table}.Sanitize() +
		" ORDER BY " + pgx.Identifier{sampleIDColumn}.Sanitize()
}
