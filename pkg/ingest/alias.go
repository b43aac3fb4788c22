package ingest

// RenameColumns copies values from site-specific source columns into
// canonical column names across every table. Source names match case- and
// punctuation-insensitively; a cell already present under the canonical
// name wins over the renamed value.
//
// This is the hook for config-driven alias overrides: schemas the built-in
// alias lists have never seen can still feed the normalizer.
func (d *DataSet) RenameColumns(renames map[string]string) {
	if len(renames) == 0 {
		return
	}
	norm := make(map[string]string, len(renames))
	for src, dst := range renames {
		norm[NormalizeKey(src)] = dst
	}
	for _, t := range []*Table{
		&d.Policies, &d.PolicyDates, &d.Limits,
		&d.Carriers, &d.CarrierGroups, &d.Programs, &d.LimitTypes,
	} {
		renameTable(t, norm)
	}
}

func renameTable(t *Table, norm map[string]string) {
	have := make(map[string]bool, len(t.Headers))
	for _, h := range t.Headers {
		have[NormalizeKey(h)] = true
	}
	for _, h := range t.Headers {
		dst, ok := norm[NormalizeKey(h)]
		if !ok || have[NormalizeKey(dst)] {
			continue
		}
		have[NormalizeKey(dst)] = true
		t.Headers = append(t.Headers, dst)
		for _, row := range t.Rows {
			if _, exists := row[dst]; !exists {
				row[dst] = row[h]
			}
		}
	}
}
