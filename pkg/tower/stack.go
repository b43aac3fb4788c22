package tower

import (
	"cmp"
	"slices"
)

// =============================================================================
// Layer Stack Builder
// =============================================================================

// Synthetic display buckets. Real buckets are carrier or carrier-group names.
const (
	SeriesQuotaShare  = "Quota share"
	SeriesAvailable   = "Available"
	SeriesUnavailable = "Unavailable"
)

// Point is one drawable floating bar.
type Point struct {
	XStart       float64       `json:"x_start"`
	XEnd         float64       `json:"x_end"`
	Attach       float64       `json:"attach"`
	Top          float64       `json:"top"`
	Participants []Participant `json:"participants"`
	IsQuotaShare bool          `json:"is_quota_share,omitempty"`
	QuotaKey     string        `json:"quota_key,omitempty"`
}

// Series is one display bucket with its ordered drawable points.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// StackOptions configures drawable conversion.
type StackOptions struct {
	// SplitAvailability subdivides every segment's vertical span into an
	// "unavailable" sub-band (consumed or insolvent portion) followed by
	// an "available" remainder, routed into the two synthetic buckets.
	SplitAvailability bool
}

// BuildSeries converts segments into per-bucket drawable series.
//
// Within each point, participants are sorted by descending individual
// limit with ties broken by carrier name, so a proportional sub-division
// always draws the largest participant in the bottom band regardless of
// input row order. Series are sorted by name and points retain the
// segment sort (time start, then attachment).
func BuildSeries(segs []Segment, opts StackOptions) []Series {
	byName := make(map[string]*Series)
	var order []string

	add := func(name string, p Point) {
		s, ok := byName[name]
		if !ok {
			s = &Series{Name: name}
			byName[name] = s
			order = append(order, name)
		}
		s.Points = append(s.Points, p)
	}

	for _, seg := range segs {
		p := pointFrom(seg)
		if !opts.SplitAvailability {
			add(seg.DisplayGroup, p)
			continue
		}

		unavailable, available := splitPoint(p)
		if unavailable != nil {
			add(SeriesUnavailable, *unavailable)
		}
		if available != nil {
			add(SeriesAvailable, *available)
		}
	}

	out := make([]Series, 0, len(byName))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	slices.SortFunc(out, func(a, b Series) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func pointFrom(seg Segment) Point {
	parts := append([]Participant(nil), seg.Participants...)
	slices.SortFunc(parts, func(a, b Participant) int {
		if c := cmp.Compare(b.Limit, a.Limit); c != 0 {
			return c
		}
		return cmp.Compare(a.Carrier, b.Carrier)
	})
	return Point{
		XStart:       seg.Start,
		XEnd:         seg.End,
		Attach:       seg.Attachment,
		Top:          seg.Attachment + seg.SummedLimit,
		Participants: parts,
		IsQuotaShare: seg.IsQuotaShare(),
		QuotaKey:     seg.QuotaKey,
	}
}

// splitPoint carves the point's vertical span into an unavailable band of
// height Σ unavailablePortion(p) and an available band for the remainder.
// Either band may be absent; neither is ever negative.
func splitPoint(p Point) (unavailable, available *Point) {
	var blocked float64
	for _, part := range p.Participants {
		blocked += unavailablePortion(part)
	}

	total := p.Top - p.Attach
	blocked = min(max(blocked, 0), total)
	free := total - blocked

	if blocked > epsilon {
		u := p
		u.Top = p.Attach + blocked
		unavailable = &u
	}
	if free > epsilon {
		a := p
		a.Attach = p.Attach + blocked
		available = &a
	}
	return unavailable, available
}

// unavailablePortion is the vertical extent of a participant's limit that
// cannot respond: the full limit for insolvent/uncollectible carriers,
// otherwise the consumed amount capped at the limit.
func unavailablePortion(p Participant) float64 {
	if p.Availability == Unavailable {
		return p.Limit
	}
	return min(max(p.Consumed, 0), p.Limit)
}
