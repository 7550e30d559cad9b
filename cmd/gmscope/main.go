package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/gmtooling/gmscope/internal/build"
	"github.com/gmtooling/gmscope/internal/config"
	"github.com/gmtooling/gmscope/internal/types"
	"github.com/gmtooling/gmscope/internal/version"
)

func main() {
	app := newApp(afero.NewOsFs())
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// newApp assembles the CLI over an injected file system so commands are
// testable against an in-memory tree.
func newApp(fsys afero.Fs) *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, version.FullInfo())
	}
	return &cli.App{
		Name:                   "gmscope",
		Usage:                  "Semantic project indexing for GameMaker projects",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (default: current directory)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Analysis worker count (0 = default)",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Skip the cache probe and the post-build save",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude paths matching glob patterns (e.g. --exclude 'autogen/**')",
			},
			&cli.StringFlag{
				Name:  "builtins",
				Usage: "Built-in identifier list override (fnames format)",
			},
		},
		Commands: []*cli.Command{
			indexCommand(fsys),
			queryCommand(fsys),
			statusCommand(fsys),
			statsCommand(fsys),
			cleanCommand(fsys),
			watchCommand(fsys),
		},
	}
}

// loadConfigWithOverrides loads configuration and applies CLI flag overrides.
func loadConfigWithOverrides(c *cli.Context, fsys afero.Fs) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.Load(fsys, absRoot)
	if err != nil {
		return nil, err
	}

	if workers := c.Int("workers"); workers != 0 {
		cfg.Index.Workers = types.ClampWorkerCount(workers)
	}
	if c.Bool("no-cache") {
		cfg.Cache.Disabled = true
	}
	if patterns := c.StringSlice("exclude"); len(patterns) > 0 {
		cfg.Exclude = append(cfg.Exclude, patterns...)
	}
	if path := c.String("builtins"); path != "" {
		cfg.Index.BuiltinsPath = path
	}
	return cfg, nil
}

// newCoordinator wires a build coordinator from the effective config.
func newCoordinator(fsys afero.Fs, cfg *config.Config) *build.Coordinator {
	return build.NewCoordinator(fsys, build.Options{
		Workers:       cfg.Index.Workers,
		CachePath:     cfg.Cache.Path,
		NoCache:       cfg.Cache.Disabled,
		Exclude:       cfg.Exclude,
		BuiltinsPath:  cfg.Index.BuiltinsPath,
		MaxCacheBytes: cfg.Cache.MaxBytes,
	})
}
