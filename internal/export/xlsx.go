package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/serp-scraper/internal/model"
)

// SheetName is the worksheet results are written to.
const SheetName = "Results"

func buildXLSX(rows []model.ResultRow) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}
	addRow(sheet, model.ResultColumns)
	for _, r := range rows {
		addRow(sheet, r.Record())
	}
	return f, nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// WriteXLSX writes rows as a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []model.ResultRow) error {
	f, err := buildXLSX(rows)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// SaveXLSX writes rows to path, appending ".xlsx" when missing, and returns
// the path written.
func SaveXLSX(path string, rows []model.ResultRow) (string, error) {
	path = WithExt(path, ".xlsx")
	f, err := buildXLSX(rows)
	if err != nil {
		return "", err
	}
	if err := f.Save(path); err != nil {
		return "", eris.Wrapf(err, "export: save %s", path)
	}
	return path, nil
}
