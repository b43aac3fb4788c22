// Package chart renders coverage tower geometry into deliverable formats.
//
// Two sinks are provided:
//
//   - [RenderJSON] produces the interchange document served by the HTTP
//     API and stored in the artifact cache
//   - [RenderSVG] draws the tower directly: floating bars per layer with
//     hover titles, axes, and an optional legend row
//
// Both take [tower.ChartData] as produced by the engine and are pure
// functions of their inputs, so their outputs cache cleanly.
package chart
