package ingest

import (
	"github.com/tealeg/xlsx/v2"

	"github.com/rawp123/covertower/pkg/errors"
)

// XLSXOptions configures workbook parsing.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX parses one sheet of an XLSX workbook into a Table. The first
// row is treated as the header row.
func ReadXLSX(path string, opts XLSXOptions) (Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return Table{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "open workbook %s", path)
	}

	sheet, err := pickSheet(f, opts)
	if err != nil {
		return Table{}, err
	}

	t := Table{Name: tableNameFromPath(path)}
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.String()
		}
		if i == 0 {
			t.Headers = cells
			continue
		}
		t.Rows = append(t.Rows, recordToRow(t.Headers, cells))
	}
	return t, nil
}

func pickSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, errors.New(errors.ErrCodeNotFound, "sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"sheet index %d out of range (workbook has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
