package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/gmtooling/gmscope/internal/metrics"
)

type statsReport struct {
	ProjectRoot string                `json:"projectRoot"`
	Stats       *metrics.ProjectStats `json:"stats"`
}

// statsCommand derives aggregate statistics from the index.
func statsCommand(fsys afero.Fs) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregate project statistics",
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

			coord := newCoordinator(fsys, cfg)
			defer coord.Dispose()

			result, err := coord.EnsureReady(c.Context, cfg.Project.Root)
			if err != nil {
				return err
			}
			stats := metrics.ComputeProjectStats(result.Index)

			if c.Bool("json") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(statsReport{ProjectRoot: cfg.Project.Root, Stats: stats})
			}
			writeStatsHuman(c, cfg.Project.Root, stats)
			return nil
		},
	}
}

func writeStatsHuman(c *cli.Context, root string, stats *metrics.ProjectStats) {
	w := c.App.Writer

	fmt.Fprintf(w, "Project: %s\n", root)

	fmt.Fprintf(w, "\nResources:\n")
	resourceTypes := make([]string, 0, len(stats.ResourceTypeCounts))
	for rt := range stats.ResourceTypeCounts {
		resourceTypes = append(resourceTypes, rt)
	}
	sort.Strings(resourceTypes)
	for _, rt := range resourceTypes {
		fmt.Fprintf(w, "  %-10s %d\n", rt+":", stats.ResourceTypeCounts[rt])
	}

	fmt.Fprintf(w, "\nScripts:      %d (%d unreferenced)\n", stats.ScriptCount, len(stats.UnreferencedScripts))
	fmt.Fprintf(w, "Orphan files: %d\n", stats.OrphanFileScopes)
	fmt.Fprintf(w, "Calls:        %d (%d unresolved)\n", stats.CallCount, stats.UnresolvedCalls)

	if len(stats.MostCalled) > 0 {
		fmt.Fprintf(w, "\nMost called:\n")
		for _, tally := range stats.MostCalled {
			fmt.Fprintf(w, "  %-20s %d\n", tally.Name, tally.Calls)
		}
	}
	if len(stats.UnreferencedScripts) > 0 {
		fmt.Fprintf(w, "\nUnreferenced scripts:\n")
		for _, name := range stats.UnreferencedScripts {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
}
