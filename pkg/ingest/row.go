// Package ingest loads loosely-typed tabular data for the coverage engine.
//
// Source systems export policy schedules as CSV or XLSX workbooks whose
// column headers have drifted over the years ("Attachment Point",
// "attachment_point", even a long-lived "Atachment Point" misspelling).
// Rather than demanding exact headers, every lookup goes through an alias
// list resolved case- and punctuation-insensitively, first match wins.
//
// The package produces [Row] and [Table] values only; joining rows into
// canonical coverage records is the tower package's job.
package ingest

import (
	"strings"
)

// Row is a single tabular record: column name → raw cell text.
// Values are kept as strings; typed interpretation happens downstream.
type Row map[string]string

// Table is an ordered collection of rows sharing one header set.
type Table struct {
	Name    string
	Headers []string
	Rows    []Row
}

// NormalizeKey reduces a column name to its canonical lookup form:
// lowercase with every non-alphanumeric rune removed. "Attachment Point",
// "attachment_point" and "AttachmentPoint" all normalize identically.
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Resolver maps alias lists to the actual column names present in a table.
// Build one per table with [NewResolver]; lookups after that are O(1).
type Resolver struct {
	byNorm map[string]string // normalized header → original header
}

// NewResolver indexes the given headers for alias lookup.
func NewResolver(headers []string) *Resolver {
	r := &Resolver{byNorm: make(map[string]string, len(headers))}
	for _, h := range headers {
		n := NormalizeKey(h)
		// First occurrence wins so duplicated headers stay deterministic.
		if _, ok := r.byNorm[n]; !ok {
			r.byNorm[n] = h
		}
	}
	return r
}

// Column returns the original header matching the first resolvable alias.
func (r *Resolver) Column(aliases ...string) (string, bool) {
	for _, a := range aliases {
		if h, ok := r.byNorm[NormalizeKey(a)]; ok {
			return h, true
		}
	}
	return "", false
}

// Value returns the trimmed cell under the first resolvable alias.
// Missing columns and empty cells both report ok=false.
func (r *Resolver) Value(row Row, aliases ...string) (string, bool) {
	h, ok := r.Column(aliases...)
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(row[h])
	return v, v != ""
}

// ResolverFor builds a resolver from a table's headers. When the table has
// no explicit header list (e.g. constructed in tests), headers are the
// union of every row's keys, so a column populated only on later rows
// still resolves.
func ResolverFor(t Table) *Resolver {
	if len(t.Headers) > 0 {
		return NewResolver(t.Headers)
	}
	var headers []string
	seen := make(map[string]bool)
	for _, row := range t.Rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	return NewResolver(headers)
}
