package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rawp123/covertower/pkg/errors"
)

// ReadCSV parses a CSV file into a Table. The first record is treated as
// the header row. Short records are padded with empty cells so every row
// exposes the full header set.
func ReadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Table{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return Table{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
	}
	defer f.Close()

	t, err := readCSV(f)
	if err != nil {
		return Table{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", path)
	}
	t.Name = tableNameFromPath(path)
	return t, nil
}

func readCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged exports

	header, err := cr.Read()
	if err == io.EOF {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, err
	}

	t := Table{Headers: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, err
		}
		t.Rows = append(t.Rows, recordToRow(header, rec))
	}
	return t, nil
}

func recordToRow(header, rec []string) Row {
	row := make(Row, len(header))
	for i, h := range header {
		if i < len(rec) {
			row[h] = rec[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

// tableNameFromPath derives a logical table name from a file path:
// base name without extension, lowercased.
func tableNameFromPath(path string) string {
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}
