package tower

import (
	"fmt"
	"strconv"
)

// =============================================================================
// Quota-Share Grouper
// =============================================================================

// GroupKey derives the composite quota grouping key for a slice. Two slices
// with identical keys but different policy ids are quota-share participants
// of the same layer.
//
// The key is the most specific form the source system evolved to: program,
// year (or "full" outside year-axis mode), attachment, limit type, named
// insured, and the exact overlap span. Coarser historical keys
// (attachment+limit+term only) are intentionally not supported.
func GroupKey(s CoverageSlice) string {
	label := "full"
	start, end := s.PolicyStart, s.PolicyEnd
	if s.Year != 0 {
		label = strconv.Itoa(s.Year)
		start, end = s.OverlapStart, s.OverlapEnd
	}
	return fmt.Sprintf("%s|%s|%.0f|%s|%s|%d-%d",
		s.Program, label, s.Attachment, s.LimitType, s.NamedInsured, start, end)
}

// BuildQuotaKeySet computes the set of quota-share keys for a slice set:
// keys shared by at least two distinct policy ids. Membership is binary;
// there is no partial state.
//
// The set must be recomputed from the currently filtered slice set on every
// render pass — filtering away one of two participants legitimately turns
// a quota layer back into a single-policy layer.
func BuildQuotaKeySet(slices []CoverageSlice) map[string]bool {
	policies := make(map[string]map[string]bool)
	for _, s := range slices {
		k := GroupKey(s)
		if policies[k] == nil {
			policies[k] = make(map[string]bool)
		}
		policies[k][s.PolicyID] = true
	}

	keys := make(map[string]bool)
	for k, ids := range policies {
		if len(ids) >= 2 {
			keys[k] = true
		}
	}
	return keys
}
