package version

// Version information for gmscope
const (
	// Version is the current semantic version of gmscope. The cache envelope
	// records it as formatterVersion; any change invalidates existing caches.
	Version = "0.3.0"

	// PluginVersion identifies the editor-plugin protocol revision this
	// indexer was built against. Recorded as pluginVersion in the cache
	// envelope and compared on load.
	PluginVersion = "1.2.0"

	// BuildDate is set during build time (use -ldflags)
	BuildDate = "development"

	// GitCommit is set during build time (use -ldflags)
	GitCommit = "unknown"
)

// Info returns version information as a string
func Info() string {
	return Version
}

// FullInfo returns detailed version information
func FullInfo() string {
	return "gmscope " + Version + " (plugin protocol " + PluginVersion + ", commit: " + GitCommit + ", built: " + BuildDate + ")"
}
