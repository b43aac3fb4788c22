package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/rawp123/covertower/pkg/render"
	"github.com/rawp123/covertower/pkg/tower"
)

// Options configures structure diagram rendering.
type Options struct {
	// Detailed includes limit, attachment and term metadata in policy
	// labels. When false, only the policy number is shown.
	Detailed bool
}

// ToDOT converts a normalized dataset to Graphviz DOT format, laying out
// the placement hierarchy: program → carrier group → carrier → policy.
// The resulting DOT string can be rendered using [RenderSVG], [RenderPDF],
// or [RenderPNG].
//
// Policies classified unavailable are rendered with dashed outlines and
// grey fill so collectibility problems stand out in the structure view.
func ToDOT(ds tower.Dataset, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	type edge struct{ from, to string }
	nodes := make(map[string][]string)
	edgeSet := make(map[edge]bool)
	var nodeOrder []string
	var edges []edge

	addNode := func(id string, attrs ...string) {
		if _, ok := nodes[id]; !ok {
			nodeOrder = append(nodeOrder, id)
		}
		nodes[id] = attrs
	}
	addEdge := func(from, to string) {
		e := edge{from, to}
		if from == "" || to == "" || edgeSet[e] {
			return
		}
		edgeSet[e] = true
		edges = append(edges, e)
	}

	for _, s := range ds.Slices {
		program := nodeID("program", s.Program)
		group := nodeID("group", s.CarrierGroup)
		carrier := nodeID("carrier", s.Carrier)
		policy := nodeID("policy", s.PolicyID)

		if s.Program != "" {
			addNode(program, fmt.Sprintf("label=%q", s.Program), "shape=folder")
		}
		if s.CarrierGroup != "" {
			addNode(group, fmt.Sprintf("label=%q", s.CarrierGroup))
		}
		if s.Carrier != "" {
			addNode(carrier, fmt.Sprintf("label=%q", s.Carrier))
		}
		addNode(policy, policyAttrs(s, opts.Detailed)...)

		if s.CarrierGroup != "" {
			addEdge(program, group)
			addEdge(group, carrier)
		} else {
			addEdge(program, carrier)
		}
		addEdge(carrier, policy)
	}

	sort.Strings(nodeOrder)
	for _, id := range nodeOrder {
		fmt.Fprintf(&buf, "  %q [", id)
		for i, a := range nodes[id] {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(a)
		}
		buf.WriteString("];\n")
	}

	buf.WriteString("\n")
	for _, e := range edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.from, e.to)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeID(kind, name string) string {
	if name == "" {
		return ""
	}
	return kind + ":" + name
}

func policyAttrs(s tower.CoverageSlice, detailed bool) []string {
	label := s.PolicyNumber
	if label == "" {
		label = s.PolicyID
	}
	if detailed {
		label = fmt.Sprintf("%s\n%s xs %s", label, fmtLimit(s.Limit), fmtLimit(s.Attachment))
		if s.LimitType != "" {
			label += "\n" + s.LimitType
		}
	}

	attrs := []string{fmt.Sprintf("label=%q", label)}
	if s.Availability == tower.Unavailable {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	}
	return attrs
}

func fmtLimit(v float64) string {
	if v >= 1e6 {
		return fmt.Sprintf("%gM", v/1e6)
	}
	if v >= 1e3 {
		return fmt.Sprintf("%gK", v/1e3)
	}
	return fmt.Sprintf("%g", v)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
// This is a convenience wrapper around [RenderSVG] and [render.ToPDF].
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(dot string) ([]byte, error) {
	svg, err := RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// This is a convenience wrapper around [RenderSVG] and [render.ToPNG].
//
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPNG(dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(svg, scale)
}
