package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rawp123/covertower/pkg/errors"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Attachment Point", "attachmentpoint"},
		{"attachment_point", "attachmentpoint"},
		{"AttachmentPoint", "attachmentpoint"},
		{"Quota Share %", "quotashare"},
		{"  Policy ID  ", "policyid"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolverFirstAliasWins(t *testing.T) {
	r := NewResolver([]string{"Policy Number", "Policy ID"})
	row := Row{"Policy Number": "UMB-001", "Policy ID": "P1"}

	v, ok := r.Value(row, "policy id", "policy number")
	if !ok || v != "P1" {
		t.Errorf("Value = %q, %v; want P1 from the first resolvable alias", v, ok)
	}
}

func TestResolverForUnionsRaggedRows(t *testing.T) {
	// No explicit header list and a column that first appears on the
	// second row: it must still resolve for every row.
	tab := Table{Rows: []Row{
		{"ID": "C1", "Name": "Alpha Insurance"},
		{"ID": "C2", "Name": "Beta Mutual", "Solvency": "Insolvent"},
	}}
	r := ResolverFor(tab)

	if v, ok := r.Value(tab.Rows[1], "solvency"); !ok || v != "Insolvent" {
		t.Errorf("solvency = %q, %v; want Insolvent via a later row's column", v, ok)
	}
	if _, ok := r.Value(tab.Rows[0], "solvency"); ok {
		t.Error("rows without the cell still report ok=false")
	}
}

func TestResolverEmptyCellIsMissing(t *testing.T) {
	r := NewResolver([]string{"Limit"})
	if _, ok := r.Value(Row{"Limit": "   "}, "limit"); ok {
		t.Error("whitespace-only cell should report ok=false")
	}
}

func TestReadCSVPadsShortRecords(t *testing.T) {
	tab, err := readCSV(strings.NewReader("A,B,C\n1,2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(tab.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(tab.Rows))
	}
	if got := tab.Rows[0]["C"]; got != "" {
		t.Errorf("short record cell = %q, want empty pad", got)
	}
}

func TestLoadDirClassifiesTables(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"Policies.csv":      "Policy ID,Carrier\nP1,Alpha\n",
		"policy_limits.csv": "Policy ID,Limit\nP1,5000000\n",
		"carriers.csv":      "ID,Name\nC1,Alpha\n",
		"notes.txt":         "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	ds, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Policies.Rows) != 1 || len(ds.Limits.Rows) != 1 || len(ds.Carriers.Rows) != 1 {
		t.Errorf("unexpected table sizes: policies=%d limits=%d carriers=%d",
			len(ds.Policies.Rows), len(ds.Limits.Rows), len(ds.Carriers.Rows))
	}
}

func TestLoadDirRequiresPoliciesAndLimits(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "policies.csv"), []byte("Policy ID\nP1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadDir(dir)
	if errors.GetCode(err) != errors.ErrCodeNotFound {
		t.Errorf("missing limits table: code = %v, want %v", errors.GetCode(err), errors.ErrCodeNotFound)
	}
}

func TestRenameColumns(t *testing.T) {
	ds := DataSet{
		Policies: Table{
			Headers: []string{"Policy ID", "Insurer Ref"},
			Rows: []Row{
				{"Policy ID": "P1", "Insurer Ref": "C1"},
			},
		},
		Limits: Table{
			Headers: []string{"Policy ID", "Occ Limit"},
			Rows: []Row{
				{"Policy ID": "P1", "Occ Limit": "5000000"},
			},
		},
	}

	ds.RenameColumns(map[string]string{
		"insurer ref": "Carrier ID",
		"Occ Limit":   "Limit",
	})

	pol := ResolverFor(ds.Policies)
	if v, ok := pol.Value(ds.Policies.Rows[0], "carrier id"); !ok || v != "C1" {
		t.Errorf("carrier id = %q, %v; want C1 via the renamed column", v, ok)
	}
	lim := ResolverFor(ds.Limits)
	if v, ok := lim.Value(ds.Limits.Rows[0], "limit"); !ok || v != "5000000" {
		t.Errorf("limit = %q, %v; want the renamed cell value", v, ok)
	}
}

func TestRenameColumnsCanonicalWins(t *testing.T) {
	ds := DataSet{
		Limits: Table{
			Headers: []string{"Limit", "Occ Limit"},
			Rows: []Row{
				{"Limit": "1000000", "Occ Limit": "5000000"},
			},
		},
	}

	ds.RenameColumns(map[string]string{"Occ Limit": "Limit"})

	r := ResolverFor(ds.Limits)
	if v, _ := r.Value(ds.Limits.Rows[0], "limit"); v != "1000000" {
		t.Errorf("limit = %q, existing canonical column must win over the rename", v)
	}
}
