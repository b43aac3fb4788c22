package tower

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rawp123/covertower/pkg/ingest"
)

// =============================================================================
// CoverageSlice - Canonical Coverage Record
// =============================================================================

// Availability classifies whether a layer's limit can still respond.
type Availability string

const (
	Available   Availability = "available"
	Unavailable Availability = "unavailable"
)

// CoverageSlice is one canonical coverage record: a policy-limit row joined
// with its policy, dates, carrier, and lookup tables. In year-axis mode a
// policy spanning calendar years yields one slice per covered year, each
// carrying the full limit (attachment stacks must read continuously across
// years) but clipped x-extent.
type CoverageSlice struct {
	PolicyID     string
	PolicyNumber string
	Carrier      string
	CarrierGroup string
	Program      string
	NamedInsured string
	LimitType    string

	Attachment   float64 // rounded to whole units
	Limit        float64 // always > 0; non-positive rows are dropped at ingestion
	Availability Availability
	SIRPerOcc    float64
	SIRAggregate float64
	Consumed     float64 // eroded portion of the limit, for availability splitting

	PolicyStart int64 // full policy span, ms since epoch, inclusive
	PolicyEnd   int64 // exclusive

	// Year-axis fields, populated only when Options.YearAxis is set.
	Year         int
	OverlapStart int64 // clip of [PolicyStart, PolicyEnd) to the calendar year
	OverlapEnd   int64
	XStart       float64 // continuous axis position; year y spans [y-0.5, y+0.5)
	XEnd         float64
}

// Span returns the slice's extent on the segmentation axis: the continuous
// x-axis in year mode, raw milliseconds otherwise.
func (s CoverageSlice) Span() (float64, float64) {
	if s.Year != 0 {
		return s.XStart, s.XEnd
	}
	return float64(s.PolicyStart), float64(s.PolicyEnd)
}

// Dataset is the normalized form of one data load. QuotaEvidence records
// whether any input row showed explicit quota-share semantics; without it
// the grouper is disabled for the whole dataset.
type Dataset struct {
	Slices        []CoverageSlice
	QuotaEvidence bool
}

// Options configures normalization.
type Options struct {
	// YearAxis splits each slice per covered calendar year and assigns
	// continuous x positions. This is the mode the tower chart renders.
	YearAxis bool
}

// =============================================================================
// Column Aliases
// =============================================================================

// Alias lists for every field the normalizer reads. Names accumulated over
// years of schema drift, including the long-lived "Atachment Point" typo.
var (
	aliasPolicyID     = []string{"policy id", "policyid", "id"}
	aliasPolicyNumber = []string{"policy number", "policy no", "policy num", "number"}
	aliasCarrierRef   = []string{"carrier id", "carrier", "insurer", "insurer id"}
	aliasProgramRef   = []string{"insurance program", "program id", "program"}
	aliasInsuredRef   = []string{"named insured id", "named insured", "insured id"}

	aliasDateStart = []string{"start date", "effective date", "inception", "inception date", "policy start"}
	aliasDateEnd   = []string{"end date", "expiration date", "expiration", "expiry", "policy end"}

	aliasAttachment = []string{"attachment point", "atachment point", "attachment", "attach"}
	aliasLimit      = []string{"limit", "slice limit", "occurrence limit", "per occ limit", "layer limit"}
	aliasLimitType  = []string{"policy limit type", "limit type id", "limit type"}
	aliasSIRPerOcc  = []string{"sir per occ", "sir per occurrence", "sir occ"}
	aliasSIRAgg     = []string{"sir aggregate", "sir agg", "aggregate sir"}
	aliasConsumed   = []string{"consumed", "eroded", "erosion", "paid", "exhausted amount"}

	aliasCarrierID    = []string{"carrier id", "id"}
	aliasCarrierName  = []string{"carrier name", "name", "carrier"}
	aliasCarrierGroup = []string{"carrier group id", "carrier group", "group id", "group"}

	aliasLookupID   = []string{"id", "code"}
	aliasLookupName = []string{"name", "label", "description"}

	aliasSolvency      = []string{"solvency", "solvent", "carrier solvency", "solvency status"}
	aliasCollectible   = []string{"collectible", "collectibility", "collectable"}
	aliasInsolventFlag = []string{"insolvent", "insolvency", "carrier insolvent"}
	aliasStatusText    = []string{"status", "policy status", "notes", "comments"}

	aliasQuotaShare = []string{"quota share", "quota share %", "quota share percent", "share %", "share percent", "co insurance", "coinsurance", "participation %"}
)

// =============================================================================
// Normalizer
// =============================================================================

// Normalize joins the raw tables into canonical coverage slices.
//
// Joining rules:
//   - one slice per limit row (per covered calendar year in year-axis mode)
//   - limit rows without a resolvable policy or date range are dropped silently
//   - rows with limit <= 0 are dropped
//   - availability is classified by the first matching signal in availabilityRules
func Normalize(ds ingest.DataSet, opts Options) Dataset {
	j := newJoiner(ds)

	out := Dataset{QuotaEvidence: detectQuotaEvidence(ds)}
	for _, limitRow := range ds.Limits.Rows {
		base, ok := j.sliceFor(limitRow)
		if !ok {
			continue
		}
		if opts.YearAxis {
			out.Slices = append(out.Slices, splitByYear(base)...)
		} else {
			out.Slices = append(out.Slices, base)
		}
	}
	return out
}

// joiner holds per-table resolvers and lookup indexes for one Normalize call.
type joiner struct {
	ds ingest.DataSet

	limits   *ingest.Resolver
	policies *ingest.Resolver
	dates    *ingest.Resolver
	carriers *ingest.Resolver

	policyByID  map[string]ingest.Row
	datesByID   map[string]ingest.Row
	carrierByID map[string]ingest.Row // keyed by id and by normalized name
	groupName   map[string]string
	programName map[string]string
	limitType   map[string]string
}

func newJoiner(ds ingest.DataSet) *joiner {
	j := &joiner{
		ds:          ds,
		limits:      ingest.ResolverFor(ds.Limits),
		policies:    ingest.ResolverFor(ds.Policies),
		dates:       ingest.ResolverFor(ds.PolicyDates),
		carriers:    ingest.ResolverFor(ds.Carriers),
		policyByID:  make(map[string]ingest.Row),
		datesByID:   make(map[string]ingest.Row),
		carrierByID: make(map[string]ingest.Row),
		groupName:   lookupTable(ds.CarrierGroups),
		programName: lookupTable(ds.Programs),
		limitType:   lookupTable(ds.LimitTypes),
	}

	for _, r := range ds.Policies.Rows {
		if id, ok := j.policies.Value(r, aliasPolicyID...); ok {
			j.policyByID[id] = r
		}
	}
	for _, r := range ds.PolicyDates.Rows {
		if id, ok := j.dates.Value(r, aliasPolicyID...); ok {
			j.datesByID[id] = r
		}
	}
	for _, r := range ds.Carriers.Rows {
		if id, ok := j.carriers.Value(r, aliasCarrierID...); ok {
			j.carrierByID[id] = r
		}
		if name, ok := j.carriers.Value(r, aliasCarrierName...); ok {
			j.carrierByID[ingest.NormalizeKey(name)] = r
		}
	}
	return j
}

// lookupTable indexes an id→name lookup table.
func lookupTable(t ingest.Table) map[string]string {
	res := ingest.ResolverFor(t)
	m := make(map[string]string, len(t.Rows))
	for _, r := range t.Rows {
		id, ok := res.Value(r, aliasLookupID...)
		if !ok {
			continue
		}
		if name, ok := res.Value(r, aliasLookupName...); ok {
			m[id] = name
		}
	}
	return m
}

// sliceFor builds the base (full policy span) slice for one limit row.
func (j *joiner) sliceFor(limitRow ingest.Row) (CoverageSlice, bool) {
	policyID, ok := j.limits.Value(limitRow, aliasPolicyID...)
	if !ok {
		return CoverageSlice{}, false
	}
	policyRow, ok := j.policyByID[policyID]
	if !ok {
		return CoverageSlice{}, false
	}

	limit := parseAmount(j.limits, limitRow, aliasLimit)
	if limit <= 0 {
		return CoverageSlice{}, false
	}

	start, end, ok := j.dateRange(policyID, policyRow)
	if !ok {
		// No axis placement possible without a date range.
		return CoverageSlice{}, false
	}

	carrierRow, carrierName := j.carrier(policyRow)

	s := CoverageSlice{
		PolicyID:     policyID,
		PolicyNumber: stringField(j.policies, policyRow, aliasPolicyNumber),
		Carrier:      carrierName,
		CarrierGroup: j.carrierGroup(carrierRow),
		Program:      j.program(policyRow),
		NamedInsured: stringField(j.policies, policyRow, aliasInsuredRef),
		LimitType:    j.limitTypeName(limitRow),
		Attachment:   math.Round(parseAmount(j.limits, limitRow, aliasAttachment)),
		Limit:        limit,
		SIRPerOcc:    parseAmount(j.limits, limitRow, aliasSIRPerOcc),
		SIRAggregate: parseAmount(j.limits, limitRow, aliasSIRAgg),
		Consumed:     parseAmount(j.limits, limitRow, aliasConsumed),
		PolicyStart:  start,
		PolicyEnd:    end,
	}
	s.Availability = classifyAvailability(signalContext{
		policies: j.policies, policy: policyRow,
		carriers: j.carriers, carrier: carrierRow,
	})
	return s, true
}

// dateRange resolves the policy's [start, end) span, preferring the
// dedicated dates table and falling back to date columns on the policy row.
func (j *joiner) dateRange(policyID string, policyRow ingest.Row) (int64, int64, bool) {
	if dateRow, ok := j.datesByID[policyID]; ok {
		if start, end, ok := parseRange(j.dates, dateRow); ok {
			return start, end, true
		}
	}
	return parseRange(j.policies, policyRow)
}

func parseRange(res *ingest.Resolver, row ingest.Row) (int64, int64, bool) {
	startRaw, ok1 := res.Value(row, aliasDateStart...)
	endRaw, ok2 := res.Value(row, aliasDateEnd...)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	start, ok1 := parseDateMs(startRaw)
	end, ok2 := parseDateMs(endRaw)
	if !ok1 || !ok2 || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

func (j *joiner) carrier(policyRow ingest.Row) (ingest.Row, string) {
	ref, ok := j.policies.Value(policyRow, aliasCarrierRef...)
	if !ok {
		return nil, ""
	}
	row, found := j.carrierByID[ref]
	if !found {
		row, found = j.carrierByID[ingest.NormalizeKey(ref)]
	}
	if !found {
		// The reference itself is the best display name we have.
		return nil, ref
	}
	if name, ok := j.carriers.Value(row, aliasCarrierName...); ok {
		return row, name
	}
	return row, ref
}

func (j *joiner) carrierGroup(carrierRow ingest.Row) string {
	if carrierRow == nil {
		return ""
	}
	ref, ok := j.carriers.Value(carrierRow, aliasCarrierGroup...)
	if !ok {
		return ""
	}
	if name, ok := j.groupName[ref]; ok {
		return name
	}
	return ref
}

func (j *joiner) program(policyRow ingest.Row) string {
	ref, ok := j.policies.Value(policyRow, aliasProgramRef...)
	if !ok {
		return ""
	}
	if name, ok := j.programName[ref]; ok {
		return name
	}
	return ref
}

func (j *joiner) limitTypeName(limitRow ingest.Row) string {
	ref, ok := j.limits.Value(limitRow, aliasLimitType...)
	if !ok {
		return ""
	}
	if name, ok := j.limitType[ref]; ok {
		return name
	}
	return ref
}

func stringField(res *ingest.Resolver, row ingest.Row, aliases []string) string {
	v, _ := res.Value(row, aliases...)
	return v
}

// =============================================================================
// Availability Classification
// =============================================================================

// signalContext bundles the rows an availability rule may inspect.
type signalContext struct {
	policies *ingest.Resolver
	policy   ingest.Row
	carriers *ingest.Resolver
	carrier  ingest.Row
}

// availabilityRule is one pure predicate→classification step. Rules are
// evaluated in order; the first one that fires wins and later rules are
// never consulted.
type availabilityRule struct {
	name     string
	classify func(signalContext) (Availability, bool)
}

var unavailableKeywords = []string{"insolven", "liquidat", "rehabilitat", "uncollect", "runoff", "run-off"}

// availabilityRules is the fixed signal precedence:
// carrier solvency → policy collectibility → policy insolvency flag →
// policy status keywords → carrier status keywords. Anything unmatched
// defaults to Available.
var availabilityRules = []availabilityRule{
	{
		name: "carrier solvency field",
		classify: func(c signalContext) (Availability, bool) {
			if c.carrier == nil {
				return "", false
			}
			v, ok := c.carriers.Value(c.carrier, aliasSolvency...)
			if !ok {
				return "", false
			}
			if containsAnyKeyword(v) || strings.EqualFold(v, "no") || isFalsy(v) {
				return Unavailable, true
			}
			return Available, true
		},
	},
	{
		name: "policy collectibility flag",
		classify: func(c signalContext) (Availability, bool) {
			v, ok := c.policies.Value(c.policy, aliasCollectible...)
			if !ok {
				return "", false
			}
			if isFalsy(v) || strings.Contains(strings.ToLower(v), "uncollect") {
				return Unavailable, true
			}
			return Available, true
		},
	},
	{
		name: "policy insolvency flag",
		classify: func(c signalContext) (Availability, bool) {
			v, ok := c.policies.Value(c.policy, aliasInsolventFlag...)
			if !ok {
				return "", false
			}
			if isTruthy(v) {
				return Unavailable, true
			}
			return Available, true
		},
	},
	{
		name: "policy status keywords",
		classify: func(c signalContext) (Availability, bool) {
			v, ok := c.policies.Value(c.policy, aliasStatusText...)
			if ok && containsAnyKeyword(v) {
				return Unavailable, true
			}
			return "", false
		},
	},
	{
		name: "carrier status keywords",
		classify: func(c signalContext) (Availability, bool) {
			if c.carrier == nil {
				return "", false
			}
			v, ok := c.carriers.Value(c.carrier, aliasStatusText...)
			if ok && containsAnyKeyword(v) {
				return Unavailable, true
			}
			return "", false
		},
	},
}

func classifyAvailability(c signalContext) Availability {
	for _, rule := range availabilityRules {
		if a, ok := rule.classify(c); ok {
			return a
		}
	}
	return Available
}

func containsAnyKeyword(v string) bool {
	lower := strings.ToLower(v)
	for _, kw := range unavailableKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "y", "1", "x":
		return true
	}
	return false
}

func isFalsy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "no", "n", "0":
		return true
	}
	return false
}

// =============================================================================
// Quota Evidence
// =============================================================================

// detectQuotaEvidence scans the raw tables for explicit quota-share
// semantics: a percentage-shaped value under a quota/share/co-insurance
// column, or "quota share" free text anywhere on a policy or limit row.
// Without such evidence the grouper is disabled for the whole dataset,
// preventing false positives when the business rule is not present.
func detectQuotaEvidence(ds ingest.DataSet) bool {
	for _, t := range []ingest.Table{ds.Limits, ds.Policies} {
		res := ingest.ResolverFor(t)
		for _, row := range t.Rows {
			if v, ok := res.Value(row, aliasQuotaShare...); ok && isPercentShaped(v) {
				return true
			}
			for _, cell := range row {
				if strings.Contains(strings.ToLower(cell), "quota share") {
					return true
				}
			}
		}
	}
	return false
}

// isPercentShaped accepts "50%", "50", "0.5" — any numeric in (0, 100].
func isPercentShaped(v string) bool {
	f, ok := parseNumber(v)
	return ok && f > 0 && f <= 100
}

// =============================================================================
// Parsing Helpers
// =============================================================================

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
}

func parseDateMs(v string) (int64, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func parseAmount(res *ingest.Resolver, row ingest.Row, aliases []string) float64 {
	v, ok := res.Value(row, aliases...)
	if !ok {
		return 0
	}
	f, _ := parseNumber(v)
	return f
}

func parseNumber(v string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', '%', ' ':
			return -1
		}
		return r
	}, v)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// =============================================================================
// Year-Axis Splitting
// =============================================================================

// splitByYear clips a slice to each calendar year it touches. Every year
// keeps the full limit; only the x-extent shrinks to the overlap, so the
// chart shows sub-year precision while attachment stacks read continuously.
func splitByYear(base CoverageSlice) []CoverageSlice {
	startYear := time.UnixMilli(base.PolicyStart).UTC().Year()
	endYear := time.UnixMilli(base.PolicyEnd - 1).UTC().Year()

	out := make([]CoverageSlice, 0, endYear-startYear+1)
	for y := startYear; y <= endYear; y++ {
		yStart := yearStartMs(y)
		yEnd := yearStartMs(y + 1)

		overlapStart := max(base.PolicyStart, yStart)
		overlapEnd := min(base.PolicyEnd, yEnd)
		if overlapEnd <= overlapStart {
			continue
		}

		s := base
		s.Year = y
		s.OverlapStart = overlapStart
		s.OverlapEnd = overlapEnd
		span := float64(yEnd - yStart)
		s.XStart = float64(y) - 0.5 + float64(overlapStart-yStart)/span
		s.XEnd = float64(y) - 0.5 + float64(overlapEnd-yStart)/span
		out = append(out, s)
	}
	return out
}

func yearStartMs(y int) int64 {
	return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
}
