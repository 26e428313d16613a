// Package export writes result rows as CSV, XLSX or a plain URL list.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/serp-scraper/internal/model"
)

// WithExt appends ext to path unless it already ends with it
// (case-insensitive).
func WithExt(path, ext string) string {
	if strings.HasSuffix(strings.ToLower(path), strings.ToLower(ext)) {
		return path
	}
	return path + ext
}

// WriteCSV writes the header followed by rows, in order, as UTF-8 CSV.
func WriteCSV(w io.Writer, rows []model.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.ResultColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// SaveCSV writes rows to path, appending ".csv" when missing, and returns
// the path written.
func SaveCSV(path string, rows []model.ResultRow) (string, error) {
	path = WithExt(path, ".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteCSV(f, rows); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "export: close %s", path)
	}
	return path, nil
}

// Select returns the rows at indexes, in selection order. Out-of-range
// indexes are rejected.
func Select(rows []model.ResultRow, indexes []int) ([]model.ResultRow, error) {
	out := make([]model.ResultRow, 0, len(indexes))
	for _, i := range indexes {
		if i < 0 || i >= len(rows) {
			return nil, eris.Errorf("export: row %d out of range (have %d)", i, len(rows))
		}
		out = append(out, rows[i])
	}
	return out, nil
}

// URLList joins the URL column with newlines.
func URLList(rows []model.ResultRow) string {
	urls := make([]string, len(rows))
	for i, r := range rows {
		urls[i] = r.URL
	}
	return strings.Join(urls, "\n")
}
