// Package nodelink renders placement structure as node-link diagrams.
//
// # Overview
//
// This package produces directed diagrams of the coverage hierarchy using
// Graphviz: program → carrier group → carrier → policy, with each level
// as a row of boxes connected by arrows. It's an alternative to the chart
// view for answering "who sits where in this program" without geometry.
//
// # Usage
//
// Convert a normalized dataset to DOT format, then render to SVG:
//
//	dot := nodelink.ToDOT(ds, nodelink.Options{Detailed: false})
//	svg, err := nodelink.RenderSVG(dot)
//
// For PDF or PNG output, use the render functions:
//
//	pdf, err := nodelink.RenderPDF(dot)
//	png, err := nodelink.RenderPNG(dot, 2.0)  // 2x scale
//
// # Options
//
// The [Options] struct controls diagram generation:
//
//   - Detailed: When true, policy labels include limit, attachment and
//     limit type
//
// # DOT Format
//
// The [ToDOT] function produces Graphviz DOT source that can be:
//
//   - Rendered directly via [RenderSVG]
//   - Saved and processed with external Graphviz tools
//   - Customized before rendering
//
// The generated DOT uses top-to-bottom layout (rankdir=TB) with rounded
// box nodes. Unavailable policies render dashed and grey.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
