// Package cache provides pluggable byte caches for the pipeline stages.
//
// Three backends ship with the engine: file (default for CLI usage), redis
// and mongo (for server deployments). A null backend disables caching
// entirely. Keys are produced by a Keyer so every stage's inputs are part
// of the key and stale entries can never be served for changed options.
package cache

import (
	"context"
	"time"
)

// TTLs per pipeline stage. Source data changes out from under us, so
// normalized datasets expire quickly; derived geometry and artifacts are
// pure functions of their inputs and can live longer.
const (
	TTLDataset  = 1 * time.Hour
	TTLChart    = 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with per-entry TTLs.
//
// Get returns (nil, false, nil) on a miss; errors are reserved for backend
// failures. Implementations must tolerate concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// DatasetKeyOpts captures the normalization inputs that affect the
// resulting dataset.
type DatasetKeyOpts struct {
	YearAxis  bool   `json:"year_axis"`
	Sheet     string `json:"sheet,omitempty"`
	AliasHash string `json:"alias_hash,omitempty"`
}

// ChartKeyOpts captures the aggregation inputs that affect chart geometry.
type ChartKeyOpts struct {
	View        string `json:"view"`
	Theme       string `json:"theme"`
	Annualized  bool   `json:"annualized"`
	FilterHash  string `json:"filter_hash,omitempty"`
	PaletteHash string `json:"palette_hash,omitempty"`
}

// ArtifactKeyOpts captures the rendering inputs that affect final bytes.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Keyer derives cache keys for the three cacheable pipeline stages. The
// hash chain mirrors the data flow: the chart key includes the dataset
// hash, the artifact key includes the chart hash.
type Keyer interface {
	DatasetKey(sourceHash string, opts DatasetKeyOpts) string
	ChartKey(datasetHash string, opts ChartKeyOpts) string
	ArtifactKey(chartHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes the stage input hash together with the stage options.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// DatasetKey generates a key for normalized dataset caching.
func (k *DefaultKeyer) DatasetKey(sourceHash string, opts DatasetKeyOpts) string {
	return hashKey("dataset", sourceHash, opts)
}

// ChartKey generates a key for chart geometry caching.
func (k *DefaultKeyer) ChartKey(datasetHash string, opts ChartKeyOpts) string {
	return hashKey("chart", datasetHash, opts)
}

// ArtifactKey generates a key for rendered artifact caching.
func (k *DefaultKeyer) ArtifactKey(chartHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", chartHash, opts)
}
