package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/gmtooling/gmscope/internal/query"
	"github.com/gmtooling/gmscope/internal/types"
)

type queryMatch struct {
	Collection string                 `json:"collection"`
	Similarity float64                `json:"similarity"`
	Entry      *types.IdentifierEntry `json:"entry"`
}

type queryReport struct {
	Name        string       `json:"name"`
	Matches     []queryMatch `json:"matches"`
	Suggestions []queryMatch `json:"suggestions,omitempty"`
}

func queryCommand(fsys afero.Fs) *cli.Command {
	return &cli.Command{
		Name:      "query",
		Aliases:   []string{"q"},
		Usage:     "Look up an identifier across the six collections",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Similarity threshold for suggestions (0-1)",
				Value: query.DefaultThreshold,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Max suggestions",
				Value: query.DefaultLimit,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return errors.New("usage: gmscope query <name>")
			}
			name := c.Args().First()

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

			matches := query.Lookup(result.Index, name)
			var suggestions []query.Match
			if len(matches) == 0 {
				suggestions = query.Suggest(result.Index, name, query.Options{
					Threshold: c.Float64("threshold"),
					Limit:     c.Int("limit"),
				})
			}

			if c.Bool("json") {
				return writeQueryJSON(c, name, matches, suggestions)
			}
			writeQueryHuman(c, name, matches, suggestions)
			return nil
		},
	}
}

func writeQueryJSON(c *cli.Context, name string, matches, suggestions []query.Match) error {
	report := queryReport{
		Name:    name,
		Matches: make([]queryMatch, 0, len(matches)),
	}
	for _, m := range matches {
		report.Matches = append(report.Matches, queryMatch{
			Collection: m.Collection,
			Similarity: m.Similarity,
			Entry:      m.Entry,
		})
	}
	for _, m := range suggestions {
		report.Suggestions = append(report.Suggestions, queryMatch{
			Collection: m.Collection,
			Similarity: m.Similarity,
			Entry:      m.Entry,
		})
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeQueryHuman(c *cli.Context, name string, matches, suggestions []query.Match) {
	w := c.App.Writer

	if len(matches) == 0 {
		fmt.Fprintf(w, "No identifier named %q\n", name)
		if len(suggestions) > 0 {
			fmt.Fprintf(w, "\nDid you mean:\n")
			for _, s := range suggestions {
				fmt.Fprintf(w, "  %s (%s, %.2f)\n", s.Entry.Name, s.Collection, s.Similarity)
			}
		}
		return
	}

	for _, m := range matches {
		entry := m.Entry
		fmt.Fprintf(w, "%s %s: %d declarations, %d references\n",
			m.Collection, entry.Name, len(entry.Declarations), len(entry.References))
		if entry.ScopeID != "" {
			fmt.Fprintf(w, "  scope:    %s\n", entry.ScopeID)
		}
		if entry.ResourcePath != "" {
			fmt.Fprintf(w, "  manifest: %s\n", entry.ResourcePath)
		}
		for _, decl := range entry.Declarations {
			if decl.IsSynthetic {
				fmt.Fprintf(w, "  declared: %s (synthetic)\n", decl.ScopeID)
				continue
			}
			fmt.Fprintf(w, "  declared: %s#%d\n", decl.FilePath, decl.Span.Start)
		}
	}
}
