package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rawp123/covertower/pkg/errors"
)

// DataSet is the full set of source tables the engine consumes. Lookup
// tables (carriers, groups, programs, limit types) may be empty; policies
// and limits are required.
type DataSet struct {
	Policies      Table
	PolicyDates   Table
	Limits        Table
	Carriers      Table
	CarrierGroups Table
	Programs      Table
	LimitTypes    Table
}

// Logical table names and the filename aliases they answer to. Filenames
// are matched on their normalized base name (see NormalizeKey).
var tableAliases = map[string][]string{
	"policies":      {"policies", "policy", "policyschedule"},
	"policydates":   {"policydates", "policydate", "dates", "policyterms"},
	"limits":        {"limits", "policylimits", "coveragelimits", "limitrows"},
	"carriers":      {"carriers", "carrier", "insurers"},
	"carriergroups": {"carriergroups", "carriergroup", "groups"},
	"programs":      {"programs", "program", "insuranceprograms"},
	"limittypes":    {"limittypes", "limittype", "policylimittypes"},
}

// LoadDir reads every CSV and XLSX file in dir and assigns each to its
// logical table by filename. Unrecognized files are skipped. Policies and
// limits tables are required; everything else is optional.
func LoadDir(dir string) (DataSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return DataSet{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "read directory %s", dir)
	}

	var ds DataSet
	seen := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		logical, ok := classifyFile(e.Name())
		if !ok || seen[logical] {
			continue
		}

		t, err := readFile(path)
		if err != nil {
			return DataSet{}, err
		}
		seen[logical] = true
		switch logical {
		case "policies":
			ds.Policies = t
		case "policydates":
			ds.PolicyDates = t
		case "limits":
			ds.Limits = t
		case "carriers":
			ds.Carriers = t
		case "carriergroups":
			ds.CarrierGroups = t
		case "programs":
			ds.Programs = t
		case "limittypes":
			ds.LimitTypes = t
		}
	}

	if !seen["policies"] {
		return DataSet{}, errors.New(errors.ErrCodeNotFound, "no policies table found in %s", dir)
	}
	if !seen["limits"] {
		return DataSet{}, errors.New(errors.ErrCodeNotFound, "no limits table found in %s", dir)
	}
	return ds, nil
}

func classifyFile(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".csv" && ext != ".xlsx" {
		return "", false
	}
	norm := NormalizeKey(strings.TrimSuffix(name, filepath.Ext(name)))
	for logical, aliases := range tableAliases {
		for _, a := range aliases {
			if norm == a {
				return logical, true
			}
		}
	}
	return "", false
}

func readFile(path string) (Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path, XLSXOptions{})
	}
	return ReadCSV(path)
}
