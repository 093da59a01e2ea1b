package tabfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/seqlab/taxhist/internal/core/domain"
)

// WriteFrame writes a frame as TSV: the index level names followed by the
// column names on the header line, then one line per row. Key parts shorter
// than the index arity are right-padded with empty cells, so metadata rows
// appended to a merged table line up under the first index column.
func WriteFrame(w io.Writer, f *domain.Frame) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	indexNames := f.IndexNames()
	columns := f.Columns()

	header := make([]string, 0, len(indexNames)+len(columns))
	header = append(header, indexNames...)
	header = append(header, columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, key := range f.Keys() {
		rec := make([]string, 0, len(header))
		for i := 0; i < len(indexNames); i++ {
			if i < len(key) {
				rec = append(rec, key[i])
			} else {
				rec = append(rec, "")
			}
		}
		for _, col := range columns {
			v, _ := f.Cell(key, col)
			rec = append(rec, formatCell(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFrameFile writes a frame as TSV to the file at path.
func WriteFrameFile(path string, f *domain.Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := WriteFrame(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
