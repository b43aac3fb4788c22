// Package render provides chart rendering for coverage towers.
//
// # Overview
//
// This package contains the rendering layer that turns chart-ready
// geometry from the tower package into deliverable outputs. It provides:
//
//   - Generic format conversion (SVG to PDF/PNG)
//   - Coverage chart output (in [chart] subpackage)
//   - Program structure diagrams (in [nodelink] subpackage)
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg). Both the chart and
// node-link renderers share them.
//
//	svg := chart.RenderSVG(data, opts...)
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0)  // 2x scale
//
// # Coverage Charts
//
// The [chart] subpackage draws the tower itself: floating bars spanning
// [attachment, attachment+limit] per policy year, colored per legend
// bucket, plus a JSON interchange format that front ends and the HTTP
// API consume directly.
//
// # Structure Diagrams
//
// The [nodelink] subpackage renders the program hierarchy (program →
// carrier group → carrier → policy) as a directed diagram using Graphviz.
//
//	dot := nodelink.ToDOT(ds, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(dot)
//
// [chart]: github.com/rawp123/covertower/pkg/render/chart
// [nodelink]: github.com/rawp123/covertower/pkg/render/nodelink
package render

import (
	"bytes"
	"fmt"
	"os/exec"
)

// ToPDF converts SVG bytes to PDF using rsvg-convert.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func ToPDF(svg []byte) ([]byte, error) {
	return rsvgConvert(svg, "--format=pdf")
}

// ToPNG converts SVG bytes to PNG using rsvg-convert. A scale of 2.0
// produces a 2x resolution image suitable for high-DPI displays.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func ToPNG(svg []byte, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 1.0
	}
	return rsvgConvert(svg, "--format=png", fmt.Sprintf("--zoom=%g", scale))
}

func rsvgConvert(svg []byte, args ...string) ([]byte, error) {
	if _, err := exec.LookPath("rsvg-convert"); err != nil {
		return nil, fmt.Errorf("rsvg-convert not found (install librsvg): %w", err)
	}

	cmd := exec.Command("rsvg-convert", args...)
	cmd.Stdin = bytes.NewReader(svg)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rsvg-convert: %w: %s", err, stderr.String())
	}
	return out.Bytes(), nil
}
