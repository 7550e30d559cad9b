package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/gmtooling/gmscope/internal/cache"
	"github.com/gmtooling/gmscope/internal/errors"
	"github.com/gmtooling/gmscope/internal/types"
)

// ConfigFileName is looked up in the project root, then in the user's home
// directory as a global base.
const ConfigFileName = ".gmscope.toml"

type Config struct {
	Version int      `toml:"version"`
	Project Project  `toml:"project"`
	Index   Index    `toml:"index"`
	Cache   Cache    `toml:"cache"`
	Watch   Watch    `toml:"watch"`
	Exclude []string `toml:"exclude"`
}

type Project struct {
	Root string `toml:"root"`
	Name string `toml:"name"`
}

type Index struct {
	Workers      int    `toml:"workers"`       // 0 = default, clamped to [1,16]
	BuiltinsPath string `toml:"builtins_path"` // optional override for the built-in identifier list
}

type Cache struct {
	// Disabled skips both the cache probe and the post-build save. The
	// inverted name keeps the zero value meaning "cache on".
	Disabled bool   `toml:"disabled"`
	Path     string `toml:"path"`      // optional override for the cache file location
	MaxBytes int64  `toml:"max_bytes"` // payloads above this are skipped, not written
}

type Watch struct {
	DebounceMs int `toml:"debounce_ms"`
}

// Default returns the built-in configuration rooted at the current working
// directory.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "." // Fallback to relative if we can't get absolute
	}
	return defaultWithRoot(cwd)
}

func defaultWithRoot(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{
			Root: root,
		},
		Index: Index{
			Workers: types.DefaultWorkerCount,
		},
		Cache: Cache{
			MaxBytes: 64 << 20, // 64MB, matches the cache store default
		},
		Watch: Watch{
			DebounceMs: 300, // 300ms debounce for file change bursts
		},
		Exclude: []string{
			"**/.git/**",
			"**/.gmscope-cache/**",
		},
	}
}

// Load resolves the effective configuration for a project root:
// defaults, overlaid by ~/.gmscope.toml if present, overlaid by
// <root>/.gmscope.toml if present. Project settings win; exclusion
// patterns accumulate across layers.
func Load(fs afero.Fs, rootDir string) (*Config, error) {
	if rootDir == "" {
		rootDir = "."
	}

	cfg := defaultWithRoot(rootDir)

	if home, err := os.UserHomeDir(); err == nil {
		base, err := loadFile(fs, filepath.Join(home, ConfigFileName))
		if err != nil {
			return nil, err
		}
		if base != nil {
			cfg = mergeConfigs(cfg, base)
		}
	}

	project, err := loadFile(fs, filepath.Join(rootDir, ConfigFileName))
	if err != nil {
		return nil, err
	}
	if project != nil {
		cfg = mergeConfigs(cfg, project)
	}

	// The root the caller asked for always wins over whatever the files say;
	// a config file naming a different root would silently index the wrong
	// project.
	cfg.Project.Root = rootDir
	cfg.Index.Workers = types.ClampWorkerCount(cfg.Index.Workers)
	return cfg, nil
}

// loadFile reads one TOML config file. A missing file is not an error and
// returns nil; a malformed file is a ConfigError.
func loadFile(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewConfigError("file", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigError("file", path, err)
	}
	return &cfg, nil
}

// mergeConfigs merges a base config with an overlay config.
// Overlay values take precedence, but exclusion patterns accumulate.
func mergeConfigs(base, overlay *Config) *Config {
	merged := *base

	if overlay.Version != 0 {
		merged.Version = overlay.Version
	}
	if overlay.Project.Root != "" {
		merged.Project.Root = overlay.Project.Root
	}
	if overlay.Project.Name != "" {
		merged.Project.Name = overlay.Project.Name
	}
	if overlay.Index.Workers != 0 {
		merged.Index.Workers = overlay.Index.Workers
	}
	if overlay.Index.BuiltinsPath != "" {
		merged.Index.BuiltinsPath = overlay.Index.BuiltinsPath
	}
	if overlay.Cache.Path != "" {
		merged.Cache.Path = overlay.Cache.Path
	}
	if overlay.Cache.MaxBytes != 0 {
		merged.Cache.MaxBytes = overlay.Cache.MaxBytes
	}
	if overlay.Cache.Disabled {
		merged.Cache.Disabled = true
	}
	if overlay.Watch.DebounceMs != 0 {
		merged.Watch.DebounceMs = overlay.Watch.DebounceMs
	}

	if len(overlay.Exclude) > 0 {
		merged.Exclude = dedupePatterns(append(append([]string{}, base.Exclude...), overlay.Exclude...))
	}

	return &merged
}

// dedupePatterns removes duplicate patterns while preserving first-seen order.
func dedupePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// CachePath returns the effective cache file path for this config.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return cache.DefaultPath(c.Project.Root)
}
