// Package tower implements the coverage layer aggregation engine.
//
// # Overview
//
// A coverage tower shows, per policy year, a stack of rectangular layers
// whose vertical extent is [attachment point, attachment point + limit],
// grouped and colored by carrier, carrier group, or availability. This
// package turns a flat list of per-policy coverage-limit records into
// chart-ready geometry through a multi-stage pipeline:
//
//  1. Normalize ([Normalize]): join raw tabular rows into canonical
//     [CoverageSlice] records, classify availability, split per calendar
//     year in year-axis mode.
//  2. Group ([BuildQuotaKeySet]): detect quota-share participant groups,
//     gated on explicit quota evidence in the dataset.
//  3. Segment ([SegmentSlices]): sweep interval boundaries per bucket into
//     maximal constant-state sub-intervals, then merge neighbors whose
//     participant signature did not change.
//  4. Stack ([BuildSeries]): convert segments into drawable floating bars
//     with deterministic participant ordering and optional availability
//     splitting.
//  5. Color ([ColorAssigner]): assign stable, collision-avoiding palette
//     slots per legend bucket, shared across light and dark themes.
//
// [Engine] wires the stages behind a small stateful facade: Idle →
// Loading → Ready, after which every view or filter mutation recomputes
// the whole output synchronously. Rendering to concrete formats lives in
// pkg/render; this package owns geometry only.
//
// The core has no error path: it is pure transformation over validated
// in-memory records and always produces a (possibly empty) drawable
// output. Unresolvable rows are dropped at normalization, and malformed
// segments are dropped rather than drawn.
package tower
