package tower

import "testing"

func quotaSlice(policyID string, year int, attach float64) CoverageSlice {
	return CoverageSlice{
		PolicyID:     policyID,
		Carrier:      "Carrier " + policyID,
		Program:      "Umbrella",
		NamedInsured: "NI1",
		LimitType:    "Per Occurrence",
		Attachment:   attach,
		Limit:        5000000,
		Year:         year,
		OverlapStart: 1000,
		OverlapEnd:   2000,
		XStart:       float64(year) - 0.5,
		XEnd:         float64(year) + 0.5,
	}
}

func TestGroupKeyComposition(t *testing.T) {
	a := quotaSlice("P1", 2020, 0)
	b := quotaSlice("P2", 2020, 0)

	if GroupKey(a) != GroupKey(b) {
		t.Error("slices differing only in policy id must share a key")
	}

	tests := []struct {
		name   string
		mutate func(*CoverageSlice)
	}{
		{"different attachment", func(s *CoverageSlice) { s.Attachment = 1000000 }},
		{"different program", func(s *CoverageSlice) { s.Program = "Excess" }},
		{"different limit type", func(s *CoverageSlice) { s.LimitType = "Aggregate" }},
		{"different named insured", func(s *CoverageSlice) { s.NamedInsured = "NI2" }},
		{"different year", func(s *CoverageSlice) { s.Year = 2021 }},
		{"different overlap span", func(s *CoverageSlice) { s.OverlapEnd = 3000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := quotaSlice("P2", 2020, 0)
			tt.mutate(&c)
			if GroupKey(a) == GroupKey(c) {
				t.Error("mutated slice must not share a key")
			}
		})
	}
}

func TestBuildQuotaKeySet(t *testing.T) {
	a := quotaSlice("P1", 2020, 0)
	b := quotaSlice("P2", 2020, 0)
	lone := quotaSlice("P3", 2020, 10000000)

	keys := BuildQuotaKeySet([]CoverageSlice{a, b, lone})

	if !keys[GroupKey(a)] {
		t.Error("key shared by two policies must be quota-share")
	}
	if keys[GroupKey(lone)] {
		t.Error("key with a single policy must not be quota-share")
	}
}

func TestQuotaKeySetSameIDTwiceIsNotQuota(t *testing.T) {
	// Two slices of the same policy (e.g. split across years) share keys
	// per year but never make a quota group on their own.
	a := quotaSlice("P1", 2020, 0)
	b := quotaSlice("P1", 2020, 0)

	keys := BuildQuotaKeySet([]CoverageSlice{a, b})
	if len(keys) != 0 {
		t.Errorf("quota key set = %v, want empty for a single distinct policy", keys)
	}
}

func TestQuotaStatusRecomputedAfterFiltering(t *testing.T) {
	a := quotaSlice("P1", 2020, 0)
	b := quotaSlice("P2", 2020, 0)

	full := BuildQuotaKeySet([]CoverageSlice{a, b})
	if !full[GroupKey(a)] {
		t.Fatal("both participants present: expected quota-share")
	}

	// Filtering away one participant demotes the layer.
	filtered := BuildQuotaKeySet([]CoverageSlice{a})
	if filtered[GroupKey(a)] {
		t.Error("single remaining participant must not stay quota-share")
	}
}
