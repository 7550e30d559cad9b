// Package metrics collects per-build statistics. A Summary rides along with
// build results and is persisted next to the index in the cache envelope so
// status tooling can report on the last build without redoing it.
package metrics

import "time"

// Summary describes one completed index build.
type Summary struct {
	ManifestCount    int `json:"manifestCount"`
	SourceCount      int `json:"sourceCount"`
	SkippedManifests int `json:"skippedManifests"`
	SkippedSources   int `json:"skippedSources"`

	ResourceCount int `json:"resourceCount"`
	ScopeCount    int `json:"scopeCount"`

	// IdentifierCounts is keyed by category name (script, macro, enum,
	// enumMember, globalVariable, instanceVariable).
	IdentifierCounts map[string]int `json:"identifierCounts"`

	CallCount         int `json:"callCount"`
	ResolvedCallCount int `json:"resolvedCallCount"`
	AssetRefCount     int `json:"assetRefCount"`

	Workers int `json:"workers"`

	// Stage durations in float milliseconds, matching the float mtime
	// convention used by the cache fingerprints.
	ScanMillis     float64 `json:"scanMillis"`
	ManifestMillis float64 `json:"manifestMillis"`
	AnalyzeMillis  float64 `json:"analyzeMillis"`
	TotalMillis    float64 `json:"totalMillis"`

	BuiltAt time.Time `json:"builtAt"`
}

// NewSummary returns a Summary with the count map allocated and BuiltAt set.
func NewSummary() *Summary {
	return &Summary{
		IdentifierCounts: make(map[string]int),
		BuiltAt:          time.Now().UTC(),
	}
}

// Millis converts a duration to the float millisecond form used throughout
// the cache envelope.
func Millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
