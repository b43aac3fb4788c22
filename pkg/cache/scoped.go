package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation. Server
// deployments share one redis or mongo instance between viewer sessions,
// so each session gets its own key namespace.
//
// Example usage:
//
//	// Session-specific keys
//	sessionKeyer := NewScopedKeyer(NewDefaultKeyer(), "session:abc123:")
//
//	// Shared keys for public datasets
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// DatasetKey generates a prefixed key for normalized dataset caching.
func (k *ScopedKeyer) DatasetKey(sourceHash string, opts DatasetKeyOpts) string {
	return k.prefix + k.inner.DatasetKey(sourceHash, opts)
}

// ChartKey generates a prefixed key for chart geometry caching.
func (k *ScopedKeyer) ChartKey(datasetHash string, opts ChartKeyOpts) string {
	return k.prefix + k.inner.ChartKey(datasetHash, opts)
}

// ArtifactKey generates a prefixed key for rendered artifact caching.
func (k *ScopedKeyer) ArtifactKey(chartHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(chartHash, opts)
}
