package chart

import (
	"encoding/json"
	"time"

	"github.com/rawp123/covertower/pkg/tower"
)

// JSONOption configures JSON rendering via [RenderJSON].
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	title      string
	theme      tower.Theme
	view       tower.ViewMode
	annualized bool
	generated  bool
}

// WithJSONTitle records a chart title in the output.
func WithJSONTitle(title string) JSONOption { return func(r *jsonRenderer) { r.title = title } }

// WithJSONTheme records the theme the colors were resolved against, so a
// consumer can re-request the other theme without guessing.
func WithJSONTheme(t tower.Theme) JSONOption { return func(r *jsonRenderer) { r.theme = t } }

// WithJSONView records the grouping view used to build the series.
func WithJSONView(v tower.ViewMode) JSONOption { return func(r *jsonRenderer) { r.view = v } }

// WithJSONAnnualized records that per-year segments were kept unmerged.
func WithJSONAnnualized() JSONOption { return func(r *jsonRenderer) { r.annualized = true } }

// WithJSONTimestamp includes a generation timestamp in the output.
func WithJSONTimestamp() JSONOption { return func(r *jsonRenderer) { r.generated = true } }

type jsonOutput struct {
	Title       string   `json:"title,omitempty"`
	Theme       string   `json:"theme,omitempty"`
	View        string   `json:"view,omitempty"`
	Annualized  bool     `json:"annualized,omitempty"`
	GeneratedAt string   `json:"generated_at,omitempty"`
	tower.ChartData
}

// RenderJSON exports chart-ready geometry as a pretty-printed JSON
// document. This is the primary interchange format for the engine:
//
//   - The HTTP API serves it directly to front ends
//   - Cached charts round-trip through it without recomputation
//   - External tools can consume series geometry without linking Go code
//
// The JSON carries every series with its points and participants, the
// resolved color map, the legend, and quota-share detail tables, plus
// the render options needed to reproduce the output.
func RenderJSON(data tower.ChartData, opts ...JSONOption) ([]byte, error) {
	r := jsonRenderer{}
	for _, opt := range opts {
		opt(&r)
	}

	out := jsonOutput{
		Title:      r.title,
		Theme:      string(r.theme),
		View:       string(r.view),
		Annualized: r.annualized,
		ChartData:  data,
	}
	if r.generated {
		out.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	}

	return json.MarshalIndent(out, "", "  ")
}
