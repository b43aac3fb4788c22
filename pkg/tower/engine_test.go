package tower

import (
	"testing"

	"github.com/rawp123/covertower/pkg/errors"
	"github.com/rawp123/covertower/pkg/ingest"
)

// quotaDataSet is makeDataSet with quota evidence: two policies sharing
// program, attachment, limit type, insured and dates.
func quotaDataSet() Dataset {
	raw := makeDataSet()
	raw.Limits.Rows[0]["Quota Share %"] = "50"
	raw.Limits.Rows[1]["Quota Share %"] = "50"
	return Normalize(raw, Options{})
}

func TestEngineLifecycle(t *testing.T) {
	e := NewEngine()
	if e.State() != StateIdle {
		t.Errorf("initial state = %q, want idle", e.State())
	}

	// Pre-load renders are empty but well-formed.
	out := e.Render()
	if len(out.Series) != 0 || out.Colors == nil {
		t.Error("idle render must be empty with non-nil colors")
	}

	e.StartLoading()
	if e.State() != StateLoading {
		t.Errorf("state = %q, want loading", e.State())
	}

	out = e.Load(Normalize(makeDataSet(), Options{}))
	if e.State() != StateReady {
		t.Errorf("state = %q, want ready", e.State())
	}
	if len(out.Series) == 0 {
		t.Error("ready render must produce series")
	}
}

func TestEngineQuotaShareAggregation(t *testing.T) {
	e := NewEngine()
	out := e.Load(quotaDataSet())

	if got, want := len(out.Series), 1; got != want {
		t.Fatalf("series count = %d, want %d (co-located policies collapse into one quota layer)", got, want)
	}
	s := out.Series[0]
	if s.Name != SeriesQuotaShare {
		t.Fatalf("series = %q, want %q", s.Name, SeriesQuotaShare)
	}
	p := s.Points[0]
	if !p.IsQuotaShare {
		t.Error("point must be flagged quota-share")
	}
	if got, want := p.Top-p.Attach, 10000000.0; got != want {
		t.Errorf("layer height = %f, want %f (summed limits)", got, want)
	}
	if got, want := len(p.Participants), 2; got != want {
		t.Errorf("participants = %d, want %d", got, want)
	}
}

func TestEngineNoQuotaWithoutEvidence(t *testing.T) {
	// Same co-located policies, but nothing in the dataset says quota
	// share: they stay separate per-carrier layers.
	e := NewEngine()
	out := e.Load(Normalize(makeDataSet(), Options{}))

	if got, want := len(out.Series), 2; got != want {
		t.Fatalf("series count = %d, want %d", got, want)
	}
	for _, s := range out.Series {
		if s.Name == SeriesQuotaShare {
			t.Error("quota bucket must not appear without dataset evidence")
		}
		for _, p := range s.Points {
			if p.Top-p.Attach != 5000000 {
				t.Errorf("layer height = %f, want individual 5000000", p.Top-p.Attach)
			}
		}
	}
}

func TestEngineQuotaDetails(t *testing.T) {
	e := NewEngine()
	out := e.Load(quotaDataSet())

	if len(out.QuotaDetails) != 1 {
		t.Fatalf("quota detail years = %d, want 1", len(out.QuotaDetails))
	}
	for _, byKey := range out.QuotaDetails {
		for _, d := range byKey {
			if got, want := len(d.Participants), 2; got != want {
				t.Errorf("detail participants = %d, want %d", got, want)
			}
			if got, want := d.Label, "Umbrella 2020: 10M xs 1M"; got != want {
				t.Errorf("detail label = %q, want %q", got, want)
			}
		}
	}
}

func TestEngineSetViewInvalid(t *testing.T) {
	e := NewEngine()
	e.Load(Normalize(makeDataSet(), Options{}))

	_, err := e.SetView("pie")
	if errors.GetCode(err) != errors.ErrCodeInvalidView {
		t.Errorf("error code = %v, want invalid view", errors.GetCode(err))
	}

	// The rejected mode must not stick.
	out, err := e.SetView(ViewCarrierGroup)
	if err != nil {
		t.Fatalf("SetView(carrierGroup) error: %v", err)
	}
	if got, want := len(out.Series), 1; got != want {
		t.Errorf("series count = %d, want %d (both carriers share a group)", got, want)
	}
	if out.Series[0].Name != "Alpha Group" {
		t.Errorf("series = %q, want Alpha Group", out.Series[0].Name)
	}
}

func TestEngineAvailabilityView(t *testing.T) {
	raw := makeDataSet()
	raw.Carriers.Rows[1]["Solvency"] = "Insolvent"
	e := NewEngine()
	e.Load(Normalize(raw, Options{}))

	out, err := e.SetView(ViewAvailability)
	if err != nil {
		t.Fatalf("SetView error: %v", err)
	}

	names := make(map[string]bool)
	for _, s := range out.Series {
		names[s.Name] = true
	}
	if !names[SeriesAvailable] || !names[SeriesUnavailable] {
		t.Errorf("series = %v, want both synthetic availability buckets", names)
	}
}

func TestEngineLegendToggleDemotesQuota(t *testing.T) {
	e := NewEngine()
	out := e.Load(quotaDataSet())
	if out.Series[0].Name != SeriesQuotaShare {
		t.Fatal("precondition: quota layer expected")
	}

	// Hiding one participant's carrier removes its slices before grouping,
	// and the survivor no longer qualifies as quota share.
	out = e.ToggleLegend("Beta Mutual")
	if got, want := len(out.Series), 1; got != want {
		t.Fatalf("series count = %d, want %d", got, want)
	}
	if out.Series[0].Name != "Alpha Insurance" {
		t.Errorf("series = %q, want demoted Alpha Insurance layer", out.Series[0].Name)
	}
	if out.Series[0].Points[0].IsQuotaShare {
		t.Error("demoted layer must not stay quota-share")
	}

	// Toggling again restores the quota layer.
	out = e.ToggleLegend("Beta Mutual")
	if out.Series[0].Name != SeriesQuotaShare {
		t.Errorf("series = %q, want restored quota layer", out.Series[0].Name)
	}
}

func TestEngineHiddenSyntheticSeriesDropped(t *testing.T) {
	e := NewEngine()
	e.Load(quotaDataSet())

	out := e.ToggleLegend(SeriesQuotaShare)
	if len(out.Series) != 0 {
		t.Errorf("series count = %d, want 0 (hidden synthetic bucket dropped post-build)", len(out.Series))
	}

	// The hidden entry stays in the legend so it can be re-shown.
	var found bool
	for _, entry := range out.Legend {
		if entry.Label == SeriesQuotaShare {
			found = true
			if !entry.Hidden || !entry.Synthetic {
				t.Errorf("legend entry = %+v, want hidden synthetic", entry)
			}
		}
	}
	if !found {
		t.Error("hidden quota bucket missing from legend")
	}
}

func TestEngineEntityFilters(t *testing.T) {
	e := NewEngine()
	e.Load(Normalize(makeDataSet(), Options{}))

	out := e.SetEntityFilters([]string{"Alpha Insurance"}, nil)
	if got, want := len(out.Series), 1; got != want {
		t.Fatalf("series count = %d, want %d", got, want)
	}
	if out.Series[0].Name != "Alpha Insurance" {
		t.Errorf("series = %q, want Alpha Insurance", out.Series[0].Name)
	}

	out = e.SetEntityFilters(nil, nil)
	if got, want := len(out.Series), 2; got != want {
		t.Errorf("series count = %d, want %d after clearing", got, want)
	}
}

func TestEngineYearRangeFilter(t *testing.T) {
	raw := makeDataSet()
	raw.Policies.Rows = raw.Policies.Rows[:1]
	raw.Limits.Rows = raw.Limits.Rows[:1]
	raw.PolicyDates.Rows = []ingest.Row{
		{"policy_id": "P1", "Effective Date": "2019-07-01", "Expiration Date": "2021-07-01"},
	}

	e := NewEngine()
	e.Load(Normalize(raw, Options{YearAxis: true}))

	out := e.SetYearRange(2020, 2020)
	for _, s := range out.Series {
		for _, p := range s.Points {
			if p.XEnd <= 2019.5 || p.XStart >= 2020.5 {
				t.Errorf("point [%f, %f) outside the 2020 window", p.XStart, p.XEnd)
			}
		}
	}
}

func TestEngineThemeSwitchKeepsSlots(t *testing.T) {
	e := NewEngine()
	light := e.Load(Normalize(makeDataSet(), Options{}))
	slot := e.colors.Slot("Alpha Insurance")

	dark := e.SetTheme(ThemeDark)
	if e.colors.Slot("Alpha Insurance") != slot {
		t.Error("theme switch must not move palette slots")
	}
	if light.Colors["Alpha Insurance"] == dark.Colors["Alpha Insurance"] {
		t.Error("light and dark colors should differ for the same slot")
	}
}

func TestEngineSyntheticLegendInjection(t *testing.T) {
	e := NewEngine()
	e.AddSyntheticLegend("Uninsured retention")

	out := e.Render()
	var found bool
	for _, entry := range out.Legend {
		if entry.Label == "Uninsured retention" && entry.Synthetic {
			found = true
		}
	}
	if !found {
		t.Error("injected label missing from pre-data legend")
	}
}

func TestEnginePointAt(t *testing.T) {
	e := NewEngine()
	out := e.Load(Normalize(makeDataSet(), Options{}))
	if len(out.Series) == 0 || len(out.Series[0].Points) == 0 {
		t.Fatal("precondition: rendered series expected")
	}

	want := out.Series[0]
	p := want.Points[0]
	name, hit, ok := e.PointAt((p.XStart+p.XEnd)/2, (p.Attach+p.Top)/2)
	if !ok {
		t.Fatal("midpoint of a rendered layer must hit")
	}
	if name != want.Name {
		t.Errorf("hit series = %q, want %q", name, want.Name)
	}
	if hit.Attach != p.Attach || hit.Top != p.Top {
		t.Errorf("hit point = [%f, %f), want [%f, %f)", hit.Attach, hit.Top, p.Attach, p.Top)
	}

	// Just past the top edge of the tower is empty space.
	if _, _, ok := e.PointAt((p.XStart+p.XEnd)/2, 1e12); ok {
		t.Error("coordinates above every layer must miss")
	}

	// Hit-testing before any data is loaded never matches.
	if _, _, ok := NewEngine().PointAt(0, 0); ok {
		t.Error("idle engine must not report hits")
	}
}

func TestEngineLookupPolicy(t *testing.T) {
	e := NewEngine()
	e.Load(Normalize(makeDataSet(), Options{}))

	p, ok := e.LookupPolicy("P1")
	if !ok {
		t.Fatal("expected P1 to resolve")
	}
	if p.Carrier != "Alpha Insurance" || p.Limit != 5000000 {
		t.Errorf("participant = %+v, want Alpha Insurance / 5000000", p)
	}

	if _, ok := e.LookupPolicy("NOPE"); ok {
		t.Error("unknown policy id must not resolve")
	}
}
