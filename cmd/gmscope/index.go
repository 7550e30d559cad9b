package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/gmtooling/gmscope/internal/build"
	"github.com/gmtooling/gmscope/internal/cache"
	"github.com/gmtooling/gmscope/internal/metrics"
)

// indexReport is the JSON output of `gmscope index`.
type indexReport struct {
	ProjectRoot string           `json:"projectRoot"`
	Source      build.Source     `json:"source"`
	MissReason  string           `json:"missReason,omitempty"`
	SaveResult  string           `json:"saveResult,omitempty"`
	SaveError   string           `json:"saveError,omitempty"`
	Summary     *metrics.Summary `json:"summary,omitempty"`
}

func indexCommand(fsys afero.Fs) *cli.Command {
	return &cli.Command{
		Name:    "index",
		Aliases: []string{"i"},
		Usage:   "Build or refresh the project index",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
			&cli.BoolFlag{
				Name:  "dump",
				Usage: "Write the full index JSON instead of the summary",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c, fsys)
			if err != nil {
				return err
			}

			coord := newCoordinator(fsys, cfg)
			defer coord.Dispose()

			result, err := coord.EnsureReady(c.Context, cfg.Project.Root)
			if err != nil {
				return err
			}

			if c.Bool("dump") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(result.Index)
			}
			if c.Bool("json") {
				return writeIndexJSON(c, cfg.Project.Root, result)
			}
			writeIndexHuman(c, cfg.Project.Root, result)
			return nil
		},
	}
}

func writeIndexJSON(c *cli.Context, root string, result *build.Result) error {
	report := indexReport{
		ProjectRoot: root,
		Source:      result.Source,
		Summary:     result.Summary,
	}
	if result.Source == build.SourceBuild {
		report.MissReason = result.MissReason.String()
		if result.SaveResult != cache.SaveNone {
			report.SaveResult = result.SaveResult.String()
		}
	}
	if result.SaveErr != nil {
		report.SaveError = result.SaveErr.Error()
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeIndexHuman(c *cli.Context, root string, result *build.Result) {
	w := c.App.Writer

	switch result.Source {
	case build.SourceCache:
		fmt.Fprintf(w, "Indexed %s from cache\n", root)
	default:
		fmt.Fprintf(w, "Indexed %s from build (cache miss: %s)\n", root, result.MissReason)
		if result.SaveResult != cache.SaveNone {
			fmt.Fprintf(w, "Cache save: %s\n", result.SaveResult)
		}
		if result.SaveErr != nil {
			fmt.Fprintf(w, "Cache save error: %v\n", result.SaveErr)
		}
	}

	summary := result.Summary
	if summary == nil {
		return
	}

	fmt.Fprintf(w, "\nIndex:\n")
	fmt.Fprintf(w, "  Resources:    %d\n", summary.ResourceCount)
	fmt.Fprintf(w, "  Scopes:       %d\n", summary.ScopeCount)
	fmt.Fprintf(w, "  Manifests:    %d (%d skipped)\n", summary.ManifestCount, summary.SkippedManifests)
	fmt.Fprintf(w, "  Source files: %d (%d skipped)\n", summary.SourceCount, summary.SkippedSources)
	fmt.Fprintf(w, "  Identifiers:  %d\n", identifierTotal(summary))
	for _, category := range sortedCategories(summary) {
		fmt.Fprintf(w, "    %-18s %d\n", category+":", summary.IdentifierCounts[category])
	}
	fmt.Fprintf(w, "  Calls:        %d (%d resolved)\n", summary.CallCount, summary.ResolvedCallCount)
	fmt.Fprintf(w, "  Asset refs:   %d\n", summary.AssetRefCount)

	fmt.Fprintf(w, "\nTiming:\n")
	fmt.Fprintf(w, "  Scan:     %.1f ms\n", summary.ScanMillis)
	fmt.Fprintf(w, "  Manifest: %.1f ms\n", summary.ManifestMillis)
	fmt.Fprintf(w, "  Analyze:  %.1f ms\n", summary.AnalyzeMillis)
	fmt.Fprintf(w, "  Total:    %.1f ms\n", summary.TotalMillis)
	fmt.Fprintf(w, "  Workers:  %d\n", summary.Workers)
}

func identifierTotal(summary *metrics.Summary) int {
	total := 0
	for _, n := range summary.IdentifierCounts {
		total += n
	}
	return total
}

func sortedCategories(summary *metrics.Summary) []string {
	categories := make([]string, 0, len(summary.IdentifierCounts))
	for category := range summary.IdentifierCounts {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}
