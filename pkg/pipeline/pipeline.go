// Package pipeline provides the core chart pipeline for the coverage engine.
//
// This package implements the complete load → aggregate → render pipeline
// that can be used by CLI and API components. By centralizing this logic,
// we ensure consistent behavior across all entry points and avoid code
// duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Read source tables (CSV/XLSX) and normalize them into
//     coverage slices
//  2. Aggregate: Group, segment and stack the slices into chart geometry
//  3. Render: Generate output in various formats (JSON, SVG, PNG, PDF, DOT)
//
// Each stage can be run independently or as part of the complete pipeline,
// and each stage's result is cached keyed on its inputs.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Dir:     "./data",
//	    View:    "carrier",
//	    Formats: []string{"svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rawp123/covertower/pkg/cache"
	"github.com/rawp123/covertower/pkg/errors"
	"github.com/rawp123/covertower/pkg/tower"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultWidth is the default frame width in pixels.
	DefaultWidth = 960.0

	// DefaultHeight is the default frame height in pixels.
	DefaultHeight = 600.0

	// DefaultView is the default grouping view.
	DefaultView = string(tower.ViewCarrier)

	// DefaultTheme is the default color theme.
	DefaultTheme = string(tower.ThemeLight)
)

// VizType constants for the two output shapes.
const (
	VizTypeChart    = "chart"
	VizTypeNodelink = "nodelink"
)

// Format constants for output formats.
const (
	FormatJSON = "json"
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatDOT  = "dot"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatDOT:  true,
}

// ValidVizTypes is the set of supported visualization types.
var ValidVizTypes = map[string]bool{
	VizTypeChart:    true,
	VizTypeNodelink: true,
}

// ValidThemes is the set of supported color themes.
var ValidThemes = map[string]bool{
	string(tower.ThemeLight): true,
	string(tower.ThemeDark):  true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the chart pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Load options
	Dir      string            `json:"dir"`
	Sheet    string            `json:"sheet,omitempty"`
	YearAxis bool              `json:"year_axis,omitempty"`
	Refresh  bool              `json:"refresh,omitempty"`
	Aliases  map[string]string `json:"aliases,omitempty"`

	// Aggregate options
	View       string   `json:"view,omitempty"`
	Theme      string   `json:"theme,omitempty"`
	Annualized bool     `json:"annualized,omitempty"`
	Carriers   []string `json:"carriers,omitempty"`
	Groups     []string `json:"groups,omitempty"`
	Programs   []string `json:"programs,omitempty"`
	LimitTypes []string `json:"limit_types,omitempty"`
	YearMin    int      `json:"year_min,omitempty"`
	YearMax    int      `json:"year_max,omitempty"`

	// Palette overrides, index-aligned between themes. Empty means the
	// curated palettes.
	PaletteLight []string `json:"palette_light,omitempty"`
	PaletteDark  []string `json:"palette_dark,omitempty"`

	// Render options
	VizType  string   `json:"viz_type,omitempty"`
	Formats  []string `json:"formats,omitempty"`
	Width    float64  `json:"width,omitempty"`
	Height   float64  `json:"height,omitempty"`
	Title    string   `json:"title,omitempty"`
	Legend   bool     `json:"legend,omitempty"`
	Detailed bool     `json:"detailed,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Dataset is the normalized coverage data.
	Dataset tower.Dataset

	// DatasetHash is the content hash of the normalized dataset.
	DatasetHash string

	// Chart contains the chart-ready geometry.
	Chart tower.ChartData

	// ChartHash is the content hash of the chart geometry.
	ChartHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	SliceCount    int
	SeriesCount   int
	LoadTime      time.Duration
	AggregateTime time.Duration
	RenderTime    time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	LoadHit      bool // Whether the normalized dataset came from cache
	AggregateHit bool // Whether the chart geometry came from cache
	RenderHit    bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: json, svg, png, pdf, dot)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateView checks that a grouping view is valid.
func ValidateView(view string) error {
	if !tower.ValidViewModes[tower.ViewMode(view)] {
		return errors.New(errors.ErrCodeInvalidView,
			"invalid view: %q (must be one of: carrier, carrierGroup, availability)", view)
	}
	return nil
}

// ValidateTheme checks that a theme is valid.
func ValidateTheme(theme string) error {
	if !ValidThemes[theme] {
		return errors.New(errors.ErrCodeInvalidTheme,
			"invalid theme: %q (must be one of: light, dark)", theme)
	}
	return nil
}

// ValidateVizType checks that a visualization type is valid.
func ValidateVizType(vizType string) error {
	if !ValidVizTypes[vizType] {
		return errors.New(errors.ErrCodeInvalidInput,
			"invalid viz_type: %q (must be one of: chart, nodelink)", vizType)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForLoad(); err != nil {
		return err
	}
	if err := o.ValidateForAggregate(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForLoad checks required fields for loading source data.
func (o *Options) ValidateForLoad() error {
	if err := errors.ValidateInputPath(o.Dir); err != nil {
		return err
	}
	if o.Sheet != "" {
		if err := errors.ValidateSheetName(o.Sheet); err != nil {
			return err
		}
	}
	o.setLogger()
	return nil
}

// ValidateForAggregate validates and sets defaults for aggregation.
func (o *Options) ValidateForAggregate() error {
	if o.View == "" {
		o.View = DefaultView
	}
	if o.Theme == "" {
		o.Theme = DefaultTheme
	}
	o.setLogger()
	if err := ValidateView(o.View); err != nil {
		return err
	}
	return ValidateTheme(o.Theme)
}

// ValidateForRender validates and sets defaults for rendering.
func (o *Options) ValidateForRender() error {
	if o.VizType == "" {
		o.VizType = VizTypeChart
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	o.setLogger()
	if err := ValidateVizType(o.VizType); err != nil {
		return err
	}
	return ValidateFormats(o.Formats)
}

// IsChart returns true if this is a coverage chart visualization.
func (o *Options) IsChart() bool {
	return o.VizType == "" || o.VizType == VizTypeChart
}

// IsNodelink returns true if this is a nodelink visualization.
func (o *Options) IsNodelink() bool {
	return o.VizType == VizTypeNodelink
}

// Filters returns the engine filter set described by the options.
func (o *Options) Filters() tower.Filters {
	return tower.Filters{
		Carriers:      o.Carriers,
		CarrierGroups: o.Groups,
		Programs:      o.Programs,
		LimitTypes:    o.LimitTypes,
		YearMin:       o.YearMin,
		YearMax:       o.YearMax,
	}
}

// DatasetKeyOpts returns cache key options for dataset normalization.
func (o *Options) DatasetKeyOpts() cache.DatasetKeyOpts {
	opts := cache.DatasetKeyOpts{
		YearAxis: o.YearAxis,
		Sheet:    o.Sheet,
	}
	if len(o.Aliases) > 0 {
		opts.AliasHash = hashOf(o.Aliases)
	}
	return opts
}

// ChartKeyOpts returns cache key options for chart aggregation.
func (o *Options) ChartKeyOpts() cache.ChartKeyOpts {
	opts := cache.ChartKeyOpts{
		View:       o.View,
		Theme:      o.Theme,
		Annualized: o.Annualized,
		FilterHash: o.filterHash(),
	}
	if len(o.PaletteLight) > 0 || len(o.PaletteDark) > 0 {
		opts.PaletteHash = hashOf([][]string{o.PaletteLight, o.PaletteDark})
	}
	return opts
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format: format,
		Width:  int(o.Width),
		Height: int(o.Height),
	}
}

// filterHash folds the filter set into a single key component so two
// requests with different filters never share a chart cache entry.
func (o *Options) filterHash() string {
	return hashOf(o.Filters())
}

func hashOf(v any) string {
	data, _ := json.Marshal(v)
	return cache.Hash(data)
}

func (o *Options) setLogger() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}
