// Package pkg provides the core libraries for covertower coverage charting.
//
// # Overview
//
// Covertower turns loosely-typed policy schedules into coverage tower
// charts: floating bars of limit over attachment, segmented across policy
// years, with quota-share grouping and availability shading. The pkg
// directory is organized into these areas:
//
//  1. [ingest] - Tabular loading (CSV/XLSX, alias-resolved columns)
//  2. [tower] - Domain logic (normalization, segmentation, stacking, colors, engine)
//  3. [render] - Output sinks (chart JSON/SVG, nodelink DOT, PNG/PDF conversion)
//  4. [pipeline] - Orchestration (load → aggregate → render with caching)
//  5. [cache] - Pluggable byte caches (file, redis, mongo, null)
//
// Supporting packages: [config] (covertower.toml), [errors] (coded errors),
// [observability] (instrumentation hooks), [buildinfo] (version stamping).
//
// # Architecture
//
// The typical data flow:
//
//	CSV/XLSX source tables
//	         ↓
//	    [ingest] package (rows, alias resolution)
//	         ↓
//	    [tower] package (slices → segments → series)
//	         ↓
//	    [render] package (JSON/SVG/PNG/PDF/DOT)
//
// # Quick Start
//
// Run the full pipeline over a directory of source tables:
//
//	import (
//	    "context"
//	    "github.com/rawp123/covertower/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, err := runner.Execute(context.Background(), pipeline.Options{
//	    Dir:      "./data",
//	    YearAxis: true,
//	    Formats:  []string{"svg"},
//	})
//
// Or drive the engine directly for interactive embedding:
//
//	import "github.com/rawp123/covertower/pkg/tower"
//
//	eng := tower.NewEngine()
//	eng.StartLoading()
//	chart := eng.Load(dataset)
//	chart, err := eng.SetView(tower.ViewCarrierGroup)
//
// [ingest]: https://pkg.go.dev/github.com/rawp123/covertower/pkg/ingest
// [tower]: https://pkg.go.dev/github.com/rawp123/covertower/pkg/tower
// [render]: https://pkg.go.dev/github.com/rawp123/covertower/pkg/render
// [pipeline]: https://pkg.go.dev/github.com/rawp123/covertower/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/rawp123/covertower/pkg/cache
// [config]: https://pkg.go.dev/github.com/rawp123/covertower/pkg/config
// [errors]: https://pkg.go.dev/github.com/rawp123/covertower/pkg/errors
// [observability]: https://pkg.go.dev/github.com/rawp123/covertower/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/rawp123/covertower/pkg/buildinfo
package pkg
