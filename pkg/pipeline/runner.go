package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rawp123/covertower/pkg/cache"
	"github.com/rawp123/covertower/pkg/ingest"
	"github.com/rawp123/covertower/pkg/observability"
	"github.com/rawp123/covertower/pkg/render"
	"github.com/rawp123/covertower/pkg/render/chart"
	"github.com/rawp123/covertower/pkg/render/nodelink"
	"github.com/rawp123/covertower/pkg/tower"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete load → aggregate → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Load
	loadStart := time.Now()
	observability.Pipeline().OnLoadStart(ctx, opts.Dir)
	ds, loadHit, err := r.LoadWithCacheInfo(ctx, opts)
	observability.Pipeline().OnLoadComplete(ctx, opts.Dir, len(ds.Slices), time.Since(loadStart), err)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	recordCacheStage(ctx, "dataset", loadHit)
	result.Dataset = ds
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.SliceCount = len(ds.Slices)
	result.CacheInfo.LoadHit = loadHit

	// Compute dataset hash for cache keys and API responses
	if dsData, err := json.Marshal(ds); err == nil {
		result.DatasetHash = cache.Hash(dsData)
	}

	r.Logger.Info("loaded coverage data",
		"slices", len(ds.Slices),
		"quota_evidence", ds.QuotaEvidence,
		"duration", result.Stats.LoadTime)

	// Stage 2: Aggregate
	aggStart := time.Now()
	observability.Pipeline().OnAggregateStart(ctx, opts.View, len(ds.Slices))
	chartData, aggHit, err := r.AggregateWithCacheInfo(ctx, ds, opts)
	observability.Pipeline().OnAggregateComplete(ctx, opts.View, len(chartData.Series), time.Since(aggStart), err)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	recordCacheStage(ctx, "chart", aggHit)
	result.Chart = chartData
	result.Stats.AggregateTime = time.Since(aggStart)
	result.Stats.SeriesCount = len(chartData.Series)
	result.CacheInfo.AggregateHit = aggHit

	if chartBytes, err := json.Marshal(chartData); err == nil {
		result.ChartHash = cache.Hash(chartBytes)
	}

	r.Logger.Info("aggregated layers",
		"series", len(chartData.Series),
		"duration", result.Stats.AggregateTime)

	// Stage 3: Render
	renderStart := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, chartData, ds, opts)
	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(renderStart), err)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	recordCacheStage(ctx, "artifact", renderHit)
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// LoadWithCacheInfo loads and normalizes source data with caching and
// returns cache hit info.
func (r *Runner) LoadWithCacheInfo(ctx context.Context, opts Options) (tower.Dataset, bool, error) {
	if err := opts.ValidateForLoad(); err != nil {
		return tower.Dataset{}, false, err
	}
	r.applyLogger(&opts)

	srcHash, err := sourceHash(opts.Dir)
	if err != nil {
		return tower.Dataset{}, false, err
	}
	cacheKey := r.Keyer.DatasetKey(srcHash, opts.DatasetKeyOpts())

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var ds tower.Dataset
			if err := json.Unmarshal(data, &ds); err == nil {
				return ds, true, nil // Cache hit
			}
		}
	}

	raw, err := ingest.LoadDir(opts.Dir)
	if err != nil {
		return tower.Dataset{}, false, err
	}
	raw.RenameColumns(opts.Aliases)
	ds := tower.Normalize(raw, tower.Options{YearAxis: opts.YearAxis})

	// Cache the result
	if data, err := json.Marshal(ds); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLDataset)
	}

	return ds, false, nil // Cache miss
}

// Load is a convenience wrapper that calls LoadWithCacheInfo and discards the cache hit info.
func (r *Runner) Load(ctx context.Context, opts Options) (tower.Dataset, error) {
	ds, _, err := r.LoadWithCacheInfo(ctx, opts)
	return ds, err
}

// AggregateWithCacheInfo builds chart geometry with caching and returns cache hit info.
func (r *Runner) AggregateWithCacheInfo(ctx context.Context, ds tower.Dataset, opts Options) (tower.ChartData, bool, error) {
	if err := opts.ValidateForAggregate(); err != nil {
		return tower.ChartData{}, false, err
	}
	r.applyLogger(&opts)

	dsData, _ := json.Marshal(ds)
	cacheKey := r.Keyer.ChartKey(cache.Hash(dsData), opts.ChartKeyOpts())

	// Try cache first
	if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
		var cached tower.ChartData
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, true, nil // Cache hit
		}
		// If deserialization fails, fall through to recompute
	}

	chartData, err := Aggregate(ds, opts)
	if err != nil {
		return tower.ChartData{}, false, err
	}

	// Cache the result
	if data, err := json.Marshal(chartData); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLChart)
	}

	return chartData, false, nil // Cache miss
}

// Aggregate runs the engine over a normalized dataset with the option's
// view, theme, filters, and annualized mode applied.
func Aggregate(ds tower.Dataset, opts Options) (tower.ChartData, error) {
	if err := opts.ValidateForAggregate(); err != nil {
		return tower.ChartData{}, err
	}

	eng := tower.NewEngineWithColors(
		tower.NewColorAssignerWithPalettes(opts.PaletteLight, opts.PaletteDark))
	eng.StartLoading()
	eng.Load(ds)

	if _, err := eng.SetView(tower.ViewMode(opts.View)); err != nil {
		return tower.ChartData{}, err
	}
	eng.SetTheme(tower.Theme(opts.Theme))
	eng.SetEntityFilters(opts.Carriers, opts.Groups)
	eng.SetProgramFilter(opts.Programs)
	eng.SetLimitTypeFilter(opts.LimitTypes)
	eng.SetYearRange(opts.YearMin, opts.YearMax)
	return eng.SetAnnualized(opts.Annualized), nil
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, chartData tower.ChartData, ds tower.Dataset, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	chartBytes, err := json.Marshal(chartData)
	if err != nil {
		return nil, false, fmt.Errorf("serialize chart for cache key: %w", err)
	}
	chartHash := cache.Hash(chartBytes)

	// Try to get all formats from cache
	allCached := true
	artifacts := make(map[string][]byte)

	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(chartHash, opts.ArtifactKeyOpts(format))
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			artifacts[format] = data
		} else {
			allCached = false
			break
		}
	}

	if allCached && len(artifacts) == len(opts.Formats) {
		return artifacts, true, nil // All artifacts from cache
	}

	// Render all formats
	rendered, err := renderFormats(chartData, ds, opts)
	if err != nil {
		return nil, false, err
	}

	// Cache each format
	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(chartHash, opts.ArtifactKeyOpts(format))
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact)
	}

	return rendered, false, nil // Cache miss
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, chartData tower.ChartData, ds tower.Dataset, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, chartData, ds, opts)
	return artifacts, err
}

// renderFormats produces every requested format. Chart outputs derive
// from the SVG and JSON sinks; nodelink outputs derive from the dataset's
// placement hierarchy.
func renderFormats(chartData tower.ChartData, ds tower.Dataset, opts Options) (map[string][]byte, error) {
	out := make(map[string][]byte, len(opts.Formats))

	var svg []byte
	var dot string
	if opts.IsNodelink() {
		dot = nodelink.ToDOT(ds, nodelink.Options{Detailed: opts.Detailed})
	}

	needSVG := func(format string) bool {
		return format == FormatSVG || format == FormatPNG || format == FormatPDF
	}

	for _, format := range opts.Formats {
		if svg == nil && needSVG(format) {
			var err error
			svg, err = renderSVG(chartData, dot, opts)
			if err != nil {
				return nil, err
			}
		}

		switch format {
		case FormatJSON:
			jsonOpts := []chart.JSONOption{
				chart.WithJSONTheme(tower.Theme(opts.Theme)),
				chart.WithJSONView(tower.ViewMode(opts.View)),
			}
			if opts.Title != "" {
				jsonOpts = append(jsonOpts, chart.WithJSONTitle(opts.Title))
			}
			if opts.Annualized {
				jsonOpts = append(jsonOpts, chart.WithJSONAnnualized())
			}
			data, err := chart.RenderJSON(chartData, jsonOpts...)
			if err != nil {
				return nil, fmt.Errorf("render json: %w", err)
			}
			out[format] = data
		case FormatSVG:
			out[format] = svg
		case FormatPNG:
			data, err := render.ToPNG(svg, 2.0)
			if err != nil {
				return nil, fmt.Errorf("render png: %w", err)
			}
			out[format] = data
		case FormatPDF:
			data, err := render.ToPDF(svg)
			if err != nil {
				return nil, fmt.Errorf("render pdf: %w", err)
			}
			out[format] = data
		case FormatDOT:
			if dot == "" {
				dot = nodelink.ToDOT(ds, nodelink.Options{Detailed: opts.Detailed})
			}
			out[format] = []byte(dot)
		}
	}
	return out, nil
}

func renderSVG(chartData tower.ChartData, dot string, opts Options) ([]byte, error) {
	if opts.IsNodelink() {
		return nodelink.RenderSVG(dot)
	}

	svgOpts := []chart.SVGOption{
		chart.WithSize(opts.Width, opts.Height),
		chart.WithTheme(tower.Theme(opts.Theme)),
	}
	if opts.Title != "" {
		svgOpts = append(svgOpts, chart.WithTitle(opts.Title))
	}
	if opts.Legend {
		svgOpts = append(svgOpts, chart.WithLegend())
	}
	return chart.RenderSVG(chartData, svgOpts...), nil
}

// sourceHash fingerprints the source directory: every recognized data
// file's name and content feed the hash, so edits to any table invalidate
// the cached dataset.
func sourceHash(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".csv" || ext == ".xlsx" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var buf []byte
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", err
		}
		buf = append(buf, []byte(name)...)
		buf = append(buf, 0)
		buf = append(buf, data...)
	}
	return cache.Hash(buf), nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func recordCacheStage(ctx context.Context, stage string, hit bool) {
	if hit {
		observability.Cache().OnCacheHit(ctx, stage)
	} else {
		observability.Cache().OnCacheMiss(ctx, stage)
	}
}
