package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/gmtooling/gmscope/internal/build"
	"github.com/gmtooling/gmscope/internal/cache"
	"github.com/gmtooling/gmscope/internal/metrics"
	"github.com/gmtooling/gmscope/internal/scan"
)

// statusReport represents cache and tree state for JSON output.
type statusReport struct {
	Timestamp     time.Time        `json:"timestamp"`
	ProjectRoot   string           `json:"projectRoot"`
	CachePath     string           `json:"cachePath"`
	CacheExists   bool             `json:"cacheExists"`
	CacheBytes    int64            `json:"cacheBytes"`
	Fresh         bool             `json:"fresh"`
	MissReason    string           `json:"missReason,omitempty"`
	LoadError     string           `json:"loadError,omitempty"`
	ManifestCount int              `json:"manifestCount"`
	SourceCount   int              `json:"sourceCount"`
	Summary       *metrics.Summary `json:"summary,omitempty"`
}

// statusCommand reports whether the cache would satisfy the next build.
func statusCommand(fsys afero.Fs) *cli.Command {
	return &cli.Command{
		Name:    "status",
		Aliases: []string{"st"},
		Usage:   "Show cache freshness for the project",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c, fsys)
			if err != nil {
				return err
			}

			fp, err := build.Fingerprint(fsys, scan.NewScanner(fsys, cfg.Exclude), cfg.Project.Root)
			if err != nil {
				return err
			}

			desc := build.NewDescriptor(cfg.Project.Root, cfg.Cache.Path, fp)
			payload, reason, loadErr := cache.NewStore(fsys).Load(desc)

			report := statusReport{
				Timestamp:     time.Now().UTC(),
				ProjectRoot:   cfg.Project.Root,
				CachePath:     cfg.CachePath(),
				Fresh:         payload != nil,
				ManifestCount: len(fp.Scan.Manifests),
				SourceCount:   len(fp.Scan.Sources),
			}
			if info, err := fsys.Stat(cfg.CachePath()); err == nil {
				report.CacheExists = true
				report.CacheBytes = info.Size()
			}
			if payload != nil {
				report.Summary = payload.MetricsSummary
			} else {
				report.MissReason = reason.String()
			}
			if loadErr != nil {
				report.LoadError = loadErr.Error()
			}

			if c.Bool("json") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			writeStatusHuman(c, report)
			return nil
		},
	}
}

func writeStatusHuman(c *cli.Context, report statusReport) {
	w := c.App.Writer

	fmt.Fprintf(w, "Project: %s\n", report.ProjectRoot)
	if report.CacheExists {
		fmt.Fprintf(w, "Cache:   %s (%s)\n", report.CachePath, formatBytes(report.CacheBytes))
	} else {
		fmt.Fprintf(w, "Cache:   %s (absent)\n", report.CachePath)
	}

	switch {
	case report.Fresh:
		fmt.Fprintf(w, "State:   fresh\n")
	case report.LoadError != "":
		fmt.Fprintf(w, "State:   unreadable (%s)\n", report.LoadError)
	default:
		fmt.Fprintf(w, "State:   stale (%s)\n", report.MissReason)
	}

	fmt.Fprintf(w, "\nTree:\n")
	fmt.Fprintf(w, "  Manifests: %d\n", report.ManifestCount)
	fmt.Fprintf(w, "  Sources:   %d\n", report.SourceCount)

	if report.Summary == nil {
		return
	}
	fmt.Fprintf(w, "\nLast build:\n")
	fmt.Fprintf(w, "  Built at:    %s\n", report.Summary.BuiltAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  Resources:   %d\n", report.Summary.ResourceCount)
	fmt.Fprintf(w, "  Scopes:      %d\n", report.Summary.ScopeCount)
	fmt.Fprintf(w, "  Identifiers: %d\n", identifierTotal(report.Summary))
	fmt.Fprintf(w, "  Total time:  %.1f ms\n", report.Summary.TotalMillis)
}

func cleanCommand(fsys afero.Fs) *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Remove the project's cache artifact",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c, fsys)
			if err != nil {
				return err
			}

			store := cache.NewStore(fsys)
			if err := store.Clear(cache.Descriptor{ProjectRoot: cfg.Project.Root, Path: cfg.Cache.Path}); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Cache removed for %s\n", cfg.Project.Root)
			return nil
		},
	}
}

// formatBytes formats a byte count as a human-readable string
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
