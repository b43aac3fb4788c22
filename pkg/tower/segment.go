package tower

import (
	"cmp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// Temporal Segmentation Engine
// =============================================================================

// epsilon for comparing axis positions and summed limits. Axis values are
// either small continuous-year floats or millisecond timestamps; limits are
// dollar amounts. 1e-6 is far below the resolution of either.
const epsilon = 1e-6

// Participant is one policy's contribution to a segment.
type Participant struct {
	PolicyID     string       `json:"policy_id"`
	PolicyNumber string       `json:"policy_number,omitempty"`
	Carrier      string       `json:"carrier"`
	CarrierGroup string       `json:"carrier_group,omitempty"`
	Limit        float64      `json:"limit"`
	Consumed     float64      `json:"consumed,omitempty"`
	Availability Availability `json:"availability"`
	PolicyStart  int64        `json:"policy_start_ms"`
	PolicyEnd    int64        `json:"policy_end_ms"`
}

// Segment is the atomic drawable unit: a maximal constant-state
// sub-interval of one (displayGroup, attachment, quotaKey) bucket.
//
// Invariants:
//   - SummedLimit == Σ Participants[i].Limit
//   - within one (DisplayGroup, Attachment) bucket, segments partition the
//     union of the contributing slices' spans; no two overlap in time
type Segment struct {
	DisplayGroup string
	Attachment   float64
	QuotaKey     string // empty when not quota-share
	Start, End   float64
	SummedLimit  float64
	Participants []Participant
}

// IsQuotaShare reports whether this segment is a confirmed quota-share layer.
func (s Segment) IsQuotaShare() bool { return s.QuotaKey != "" }

// SegmentSlices runs the full segmentation over a filtered slice set.
//
// Slices are bucketed by (display group, attachment, quota key); slices not
// in a quota group bucket by policy id instead, so distinct policies at the
// same attachment become separate, possibly overlapping bars rather than
// being summed. Within each bucket, interval boundaries are swept to produce
// maximal constant-state sub-intervals, which are then merged back together
// when nothing actually changed (skipped in annualized mode, which keeps one
// segment per calendar year for year-over-year comparison).
//
// Final segments are sorted by start, then attachment, then display group
// for deterministic draw order.
func SegmentSlices(cs []CoverageSlice, groupOf func(CoverageSlice) string, quotaKeys map[string]bool, annualized bool) []Segment {
	type bucketKey struct {
		group  string
		attach float64
		member string // quota key, or "policy:"+id
	}

	buckets := make(map[bucketKey][]CoverageSlice)
	var order []bucketKey // first-seen order keeps map iteration deterministic
	for _, s := range cs {
		k := bucketKey{group: groupOf(s), attach: s.Attachment}
		if qk := GroupKey(s); quotaKeys[qk] {
			k.member = qk
		} else {
			k.member = "policy:" + s.PolicyID
		}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], s)
	}

	var out []Segment
	for _, k := range order {
		quotaKey := ""
		if !strings.HasPrefix(k.member, "policy:") {
			quotaKey = k.member
		}
		raw := sweepBucket(buckets[k], k.group, k.attach, quotaKey)
		if !annualized {
			raw = mergeAdjacent(raw)
		}
		out = append(out, raw...)
	}

	slices.SortFunc(out, func(a, b Segment) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Attachment, b.Attachment); c != 0 {
			return c
		}
		return cmp.Compare(a.DisplayGroup, b.DisplayGroup)
	})
	return out
}

// sweepBucket produces raw constant-state segments for one bucket.
// Boundaries are processed left-closed/right-open, so a policy ending
// exactly when another begins never yields a phantom overlapping instant.
func sweepBucket(cs []CoverageSlice, group string, attach float64, quotaKey string) []Segment {
	cuts := make([]float64, 0, 2*len(cs))
	for _, s := range cs {
		start, end := s.Span()
		cuts = append(cuts, start, end)
	}
	sort.Float64s(cuts)
	cuts = dedupeFloats(cuts)

	var out []Segment
	for i := 0; i+1 < len(cuts); i++ {
		lo, hi := cuts[i], cuts[i+1]

		var sum float64
		var parts []Participant
		for _, s := range cs {
			start, end := s.Span()
			if start < hi-epsilon && end > lo+epsilon {
				sum += s.Limit
				parts = append(parts, participantFrom(s))
			}
		}
		if len(parts) == 0 || sum <= 0 {
			// Empty gaps and malformed (non-positive) sums are dropped,
			// not drawn as zero-height bars.
			continue
		}

		out = append(out, Segment{
			DisplayGroup: group,
			Attachment:   attach,
			QuotaKey:     quotaKey,
			Start:        lo,
			End:          hi,
			SummedLimit:  sum,
			Participants: parts,
		})
	}
	return out
}

func participantFrom(s CoverageSlice) Participant {
	return Participant{
		PolicyID:     s.PolicyID,
		PolicyNumber: s.PolicyNumber,
		Carrier:      s.Carrier,
		CarrierGroup: s.CarrierGroup,
		Limit:        s.Limit,
		Consumed:     s.Consumed,
		Availability: s.Availability,
		PolicyStart:  s.PolicyStart,
		PolicyEnd:    s.PolicyEnd,
	}
}

func dedupeFloats(v []float64) []float64 {
	out := v[:0]
	for i, f := range v {
		if i == 0 || f-out[len(out)-1] > epsilon {
			out = append(out, f)
		}
	}
	return out
}

// mergeAdjacent collapses neighboring segments that are time-contiguous,
// carry an identical participant signature, and agree on summed limit
// within epsilon. This removes the hairline cuts produced when a policy is
// renewed with identical terms. Merging is idempotent: running it on an
// already-merged set is a no-op.
func mergeAdjacent(segs []Segment) []Segment {
	if len(segs) < 2 {
		return segs
	}

	out := segs[:1]
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if s.Start-last.End <= epsilon &&
			signature(*last) == signature(s) &&
			absFloat(last.SummedLimit-s.SummedLimit) <= epsilon {
			last.End = s.End
			continue
		}
		out = append(out, s)
	}
	return out
}

// signature is the order-independent participant identity of a segment:
// policy id, individual limit, and quota key.
func signature(s Segment) string {
	parts := make([]string, len(s.Participants))
	for i, p := range s.Participants {
		parts[i] = p.PolicyID + "\x1f" + formatAmount(p.Limit) + "\x1f" + s.QuotaKey
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x1e")
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
