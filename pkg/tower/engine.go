package tower

import (
	"fmt"
	"slices"

	"github.com/rawp123/covertower/pkg/errors"
)

// =============================================================================
// Engine - Stateful Aggregation Facade
// =============================================================================

// State is the engine lifecycle. Once Ready, every filter or view mutation
// is a synchronous Ready→Ready transition that recomputes the full output;
// there is no partial or intermediate visible state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// ViewMode selects the display-grouping key.
type ViewMode string

const (
	ViewCarrier      ViewMode = "carrier"
	ViewCarrierGroup ViewMode = "carrierGroup"
	ViewAvailability ViewMode = "availability"
)

// ValidViewModes is the set of supported view modes.
var ValidViewModes = map[ViewMode]bool{
	ViewCarrier:      true,
	ViewCarrierGroup: true,
	ViewAvailability: true,
}

// Filters restricts the slice set fed into a render pass. Zero values mean
// unbounded. Quota-share membership is recomputed from the filtered set,
// so removing one of two participants demotes a layer to non-quota.
type Filters struct {
	Carriers      []string
	CarrierGroups []string
	Programs      []string
	LimitTypes    []string
	YearMin       int
	YearMax       int
	DateStart     int64 // ms, inclusive
	DateEnd       int64 // ms, exclusive
}

// LegendEntry is a tagged legend item: either a real series present in the
// dataset or a synthetic label injected ahead of data (click-to-hide works
// on both).
type LegendEntry struct {
	Label     string `json:"label"`
	Synthetic bool   `json:"synthetic,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	Color     string `json:"color"`
}

// QuotaDetail describes one quota group for hover/selection panels.
type QuotaDetail struct {
	Label        string        `json:"label"`
	Participants []Participant `json:"participants"`
}

// ChartData is the chart-ready output of one render pass.
type ChartData struct {
	Series       []Series                      `json:"series"`
	Colors       map[string]string             `json:"colors"`
	Legend       []LegendEntry                 `json:"legend"`
	QuotaDetails map[int]map[string]QuotaDetail `json:"quota_details,omitempty"`
}

// Engine owns the two pieces of state that survive rebuilds — color-slot
// assignments and legend visibility — plus the current view and filters.
// Everything else is recomputed from scratch on every render call.
//
// The engine is single-threaded: it is meant to be driven by one logical
// caller (one chart instance or one server session) at a time.
type Engine struct {
	state State
	data  Dataset

	view       ViewMode
	theme      Theme
	filters    Filters
	annualized bool

	colors    *ColorAssigner
	hidden    map[string]bool
	synthetic []string // injected legend labels with no backing series yet
}

// NewEngine creates an idle engine with the carrier view and light theme.
func NewEngine() *Engine {
	return NewEngineWithColors(NewColorAssigner())
}

// NewEngineWithColors creates an idle engine backed by the given color
// assigner, letting callers supply palette overrides or share slot state
// across engine rebuilds.
func NewEngineWithColors(colors *ColorAssigner) *Engine {
	if colors == nil {
		colors = NewColorAssigner()
	}
	return &Engine{
		state:  StateIdle,
		view:   ViewCarrier,
		theme:  ThemeLight,
		colors: colors,
		hidden: make(map[string]bool),
	}
}

// State returns the engine lifecycle state.
func (e *Engine) State() State { return e.state }

// StartLoading marks the beginning of asynchronous data acquisition. The
// engine performs no I/O itself; the caller awaits its collaborator and
// then calls Load.
func (e *Engine) StartLoading() { e.state = StateLoading }

// Load installs a normalized dataset and transitions to Ready. Color slots
// and legend visibility survive the reload.
func (e *Engine) Load(ds Dataset) ChartData {
	e.data = ds
	e.state = StateReady
	return e.Render()
}

// SetView switches the display-grouping key and recomputes.
func (e *Engine) SetView(mode ViewMode) (ChartData, error) {
	if !ValidViewModes[mode] {
		return e.Render(), errors.New(errors.ErrCodeInvalidView,
			"invalid view mode: %q (must be one of: carrier, carrierGroup, availability)", mode)
	}
	e.view = mode
	return e.Render(), nil
}

// SetTheme switches palettes without disturbing slot assignment.
func (e *Engine) SetTheme(t Theme) ChartData {
	e.theme = t
	return e.Render()
}

// SetEntityFilters restricts visible carriers and carrier groups.
func (e *Engine) SetEntityFilters(carriers, carrierGroups []string) ChartData {
	e.filters.Carriers = carriers
	e.filters.CarrierGroups = carrierGroups
	return e.Render()
}

// SetYearRange restricts the year axis; zero bounds are open.
func (e *Engine) SetYearRange(minYear, maxYear int) ChartData {
	e.filters.YearMin = minYear
	e.filters.YearMax = maxYear
	return e.Render()
}

// SetDateRange restricts by policy-span overlap with [start, end) ms.
func (e *Engine) SetDateRange(start, end int64) ChartData {
	e.filters.DateStart = start
	e.filters.DateEnd = end
	return e.Render()
}

// SetProgramFilter restricts visible insurance programs.
func (e *Engine) SetProgramFilter(programs []string) ChartData {
	e.filters.Programs = programs
	return e.Render()
}

// SetLimitTypeFilter restricts visible policy limit types.
func (e *Engine) SetLimitTypeFilter(limitTypes []string) ChartData {
	e.filters.LimitTypes = limitTypes
	return e.Render()
}

// SetAnnualized toggles one-segment-per-year mode (merge suppressed).
func (e *Engine) SetAnnualized(on bool) ChartData {
	e.annualized = on
	return e.Render()
}

// ToggleLegend flips a legend label's hidden state. Hiding a carrier or
// group label removes its slices before grouping, which can demote a quota
// layer; hiding a synthetic label suppresses its series from the output.
func (e *Engine) ToggleLegend(label string) ChartData {
	e.hidden[label] = !e.hidden[label]
	return e.Render()
}

// AddSyntheticLegend injects a legend label before any dataset uses it,
// reserving its color slot immediately.
func (e *Engine) AddSyntheticLegend(label string) {
	if !slices.Contains(e.synthetic, label) {
		e.synthetic = append(e.synthetic, label)
	}
	e.colors.ColorFor(label, e.theme)
}

// PointAt resolves a chart coordinate to the drawable point under it,
// returning the owning series name alongside the point. Coordinates are
// chart units: x on the segmentation axis, y in currency.
func (e *Engine) PointAt(x, y float64) (string, Point, bool) {
	if e.state != StateReady {
		return "", Point{}, false
	}
	for _, s := range e.Render().Series {
		for _, p := range s.Points {
			if x >= p.XStart && x < p.XEnd && y >= p.Attach && y < p.Top {
				return s.Name, p, true
			}
		}
	}
	return "", Point{}, false
}

// LookupPolicy resolves a hit-test result back to the underlying
// participant record for deep-linking into a policy detail view.
func (e *Engine) LookupPolicy(policyID string) (Participant, bool) {
	for _, s := range e.data.Slices {
		if s.PolicyID == policyID {
			return participantFrom(s), true
		}
	}
	return Participant{}, false
}

// =============================================================================
// Render
// =============================================================================

// Render recomputes the full chart-ready output from the current dataset,
// view, and filters. Before Load it returns an empty (but non-nil) result.
func (e *Engine) Render() ChartData {
	out := ChartData{Colors: make(map[string]string)}
	if e.state != StateReady {
		out.Legend = e.legendFor(nil)
		return out
	}

	fs := e.filteredSlices()

	quotaKeys := map[string]bool{}
	if e.data.QuotaEvidence {
		quotaKeys = BuildQuotaKeySet(fs)
	}

	segs := SegmentSlices(fs, e.groupFunc(quotaKeys), quotaKeys, e.annualized)
	series := BuildSeries(segs, StackOptions{SplitAvailability: e.view == ViewAvailability})

	out.Legend = e.legendFor(series)

	// Hidden synthetic buckets are dropped post-build; hidden carriers and
	// groups were already excluded pre-grouping by filteredSlices.
	visible := series[:0]
	for _, s := range series {
		if !e.hidden[s.Name] {
			visible = append(visible, s)
		}
	}
	out.Series = visible

	for _, s := range out.Series {
		out.Colors[s.Name] = e.colors.ColorFor(s.Name, e.theme)
	}
	out.QuotaDetails = e.quotaDetails(fs, quotaKeys)
	return out
}

// filteredSlices applies entity/program/limit-type/year/date filters plus
// hidden carrier and group legend labels.
func (e *Engine) filteredSlices() []CoverageSlice {
	var out []CoverageSlice
	for _, s := range e.data.Slices {
		if !matchFilter(e.filters.Carriers, s.Carrier) ||
			!matchFilter(e.filters.CarrierGroups, s.CarrierGroup) ||
			!matchFilter(e.filters.Programs, s.Program) ||
			!matchFilter(e.filters.LimitTypes, s.LimitType) {
			continue
		}
		if s.Year != 0 {
			if e.filters.YearMin != 0 && s.Year < e.filters.YearMin {
				continue
			}
			if e.filters.YearMax != 0 && s.Year > e.filters.YearMax {
				continue
			}
		}
		if e.filters.DateStart != 0 && s.PolicyEnd <= e.filters.DateStart {
			continue
		}
		if e.filters.DateEnd != 0 && s.PolicyStart >= e.filters.DateEnd {
			continue
		}
		if e.hidden[s.Carrier] || (s.CarrierGroup != "" && e.hidden[s.CarrierGroup]) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchFilter(allowed []string, v string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, v)
}

// groupFunc returns the display-group key for the current view. Confirmed
// quota-share slices route to the synthetic quota bucket in the carrier
// and carrier-group views.
func (e *Engine) groupFunc(quotaKeys map[string]bool) func(CoverageSlice) string {
	return func(s CoverageSlice) string {
		if e.view != ViewAvailability && quotaKeys[GroupKey(s)] {
			return SeriesQuotaShare
		}
		switch e.view {
		case ViewCarrierGroup:
			if s.CarrierGroup != "" {
				return s.CarrierGroup
			}
			return s.Carrier
		case ViewAvailability:
			// Bucket identity for segmentation; the availability splitter
			// routes the drawable bands into the synthetic buckets.
			return s.Carrier
		default:
			if s.Carrier == "" {
				return "Unknown carrier"
			}
			return s.Carrier
		}
	}
}

// legendFor builds legend entries for present series plus injected
// synthetic labels, including hidden ones so they can be re-shown.
func (e *Engine) legendFor(series []Series) []LegendEntry {
	var out []LegendEntry
	seen := make(map[string]bool)

	for _, s := range series {
		seen[s.Name] = true
		out = append(out, LegendEntry{
			Label:     s.Name,
			Synthetic: s.Name == SeriesQuotaShare || s.Name == SeriesAvailable || s.Name == SeriesUnavailable,
			Hidden:    e.hidden[s.Name],
			Color:     e.colors.ColorFor(s.Name, e.theme),
		})
	}
	for _, label := range e.synthetic {
		if seen[label] {
			continue
		}
		out = append(out, LegendEntry{
			Label:     label,
			Synthetic: true,
			Hidden:    e.hidden[label],
			Color:     e.colors.ColorFor(label, e.theme),
		})
	}
	return out
}

// quotaDetails builds the year → quota-key → participants side table.
func (e *Engine) quotaDetails(fs []CoverageSlice, quotaKeys map[string]bool) map[int]map[string]QuotaDetail {
	if len(quotaKeys) == 0 {
		return nil
	}

	out := make(map[int]map[string]QuotaDetail)
	for _, s := range fs {
		key := GroupKey(s)
		if !quotaKeys[key] {
			continue
		}
		year := s.Year
		if out[year] == nil {
			out[year] = make(map[string]QuotaDetail)
		}
		d := out[year][key]
		if !containsPolicy(d.Participants, s.PolicyID) {
			d.Participants = append(d.Participants, participantFrom(s))
		}
		out[year][key] = d
	}

	// Label each group with the layer total once membership is complete.
	for year, byKey := range out {
		for key, d := range byKey {
			var total float64
			for _, p := range d.Participants {
				total += p.Limit
			}
			d.Label = quotaLabel(firstSliceFor(fs, key), total)
			out[year][key] = d
		}
	}
	return out
}

func firstSliceFor(fs []CoverageSlice, key string) CoverageSlice {
	for _, s := range fs {
		if GroupKey(s) == key {
			return s
		}
	}
	return CoverageSlice{}
}

func containsPolicy(ps []Participant, id string) bool {
	for _, p := range ps {
		if p.PolicyID == id {
			return true
		}
	}
	return false
}

// quotaLabel renders the conventional "limit xs attachment" description
// for the whole layer.
func quotaLabel(s CoverageSlice, totalLimit float64) string {
	if s.Program != "" {
		return fmt.Sprintf("%s: %s xs %s", s.Program, formatDollars(totalLimit), formatDollars(s.Attachment))
	}
	return fmt.Sprintf("%s xs %s", formatDollars(totalLimit), formatDollars(s.Attachment))
}

func formatDollars(f float64) string {
	switch {
	case f >= 1e6 && f == float64(int64(f/1e5))*1e5:
		return fmt.Sprintf("%.4gM", f/1e6)
	case f >= 1e3 && f == float64(int64(f/1e3))*1e3:
		return fmt.Sprintf("%.4gK", f/1e3)
	default:
		return fmt.Sprintf("%.0f", f)
	}
}
