package nodelink

import (
	"strings"
	"testing"

	"github.com/rawp123/covertower/pkg/tower"
)

func testDataset() tower.Dataset {
	return tower.Dataset{Slices: []tower.CoverageSlice{
		{
			PolicyID: "P1", PolicyNumber: "XL-100",
			Carrier: "Alpha Insurance", CarrierGroup: "Alpha Group",
			Program: "Umbrella 2020", LimitType: "Per Occurrence",
			Attachment: 1000000, Limit: 5000000,
			Availability: tower.Available,
		},
		{
			PolicyID: "P2", PolicyNumber: "XL-200",
			Carrier: "Beta Mutual",
			Program: "Umbrella 2020",
			Limit:   2000000,
			Availability: tower.Unavailable,
		},
	}}
}

func TestToDOTHierarchy(t *testing.T) {
	dot := ToDOT(testDataset(), Options{})

	if !strings.HasPrefix(dot, "digraph G {") {
		t.Fatal("output is not a DOT digraph")
	}

	// Grouped carrier hangs off its group, ungrouped carrier hangs off
	// the program directly.
	wantEdges := []string{
		`"program:Umbrella 2020" -> "group:Alpha Group"`,
		`"group:Alpha Group" -> "carrier:Alpha Insurance"`,
		`"carrier:Alpha Insurance" -> "policy:P1"`,
		`"program:Umbrella 2020" -> "carrier:Beta Mutual"`,
		`"carrier:Beta Mutual" -> "policy:P2"`,
	}
	for _, e := range wantEdges {
		if !strings.Contains(dot, e) {
			t.Errorf("missing edge %s", e)
		}
	}

	// Unavailable policies render dashed.
	if !strings.Contains(dot, "dashed") {
		t.Error("unavailable policy should render dashed")
	}
}

func TestToDOTDetailedLabels(t *testing.T) {
	dot := ToDOT(testDataset(), Options{Detailed: true})

	if !strings.Contains(dot, "5M xs 1M") {
		t.Error("detailed label should include limit xs attachment")
	}
	if !strings.Contains(dot, "Per Occurrence") {
		t.Error("detailed label should include the limit type")
	}
}

func TestToDOTDeduplicatesSharedNodes(t *testing.T) {
	ds := testDataset()
	ds.Slices = append(ds.Slices, ds.Slices[0]) // same policy twice

	dot := ToDOT(ds, Options{})
	if got := strings.Count(dot, `"policy:P1" [`); got != 1 {
		t.Errorf("policy node declared %d times, want 1", got)
	}
	if got := strings.Count(dot, `"carrier:Alpha Insurance" -> "policy:P1"`); got != 1 {
		t.Errorf("edge declared %d times, want 1", got)
	}
}
