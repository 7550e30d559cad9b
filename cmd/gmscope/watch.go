package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/gmtooling/gmscope/internal/build"
	"github.com/gmtooling/gmscope/internal/watch"
)

// watchEvent is one line of JSON output per completed rebuild.
type watchEvent struct {
	Timestamp   time.Time    `json:"timestamp"`
	Source      build.Source `json:"source,omitempty"`
	MissReason  string       `json:"missReason,omitempty"`
	TotalMillis float64      `json:"totalMillis,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// watchCommand keeps the index current while files change on disk.
func watchCommand(fsys afero.Fs) *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"w"},
		Usage:   "Rebuild the index whenever project files change",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "debounce-ms",
				Usage: "Quiet period before a rebuild fires (0 uses the config value)",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Emit one JSON line per rebuild",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c, fsys)
			if err != nil {
				return err
			}

			coord := newCoordinator(fsys, cfg)
			defer coord.Dispose()

			// Bring the index up to date before watching so the first
			// change event diffs against a current fingerprint.
			result, err := coord.EnsureReady(c.Context, cfg.Project.Root)
			if err != nil {
				return err
			}
			emitWatchResult(c, result, nil)

			debounceMs := cfg.Watch.DebounceMs
			if ms := c.Int("debounce-ms"); ms > 0 {
				debounceMs = ms
			}

			watcher, err := watch.New(coord, cfg.Project.Root, watch.Options{
				Debounce: time.Duration(debounceMs) * time.Millisecond,
				Exclude:  cfg.Exclude,
				OnResult: func(result *build.Result, err error) {
					emitWatchResult(c, result, err)
				},
			})
			if err != nil {
				return err
			}
			if err := watcher.Start(); err != nil {
				return err
			}

			if !c.Bool("json") {
				fmt.Fprintf(c.App.Writer, "Watching %s (debounce %dms)\n", cfg.Project.Root, debounceMs)
				fmt.Fprintf(c.App.Writer, "Press Ctrl+C to stop\n")
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case sig := <-sigChan:
				if !c.Bool("json") {
					fmt.Fprintf(c.App.Writer, "\nReceived signal %v, stopping...\n", sig)
				}
			case <-c.Context.Done():
			}

			return watcher.Stop()
		},
	}
}

func emitWatchResult(c *cli.Context, result *build.Result, err error) {
	if c.Bool("json") {
		event := watchEvent{Timestamp: time.Now().UTC()}
		if err != nil {
			event.Error = err.Error()
		} else {
			event.Source = result.Source
			if result.Source == build.SourceBuild {
				event.MissReason = result.MissReason.String()
			}
			if result.Summary != nil {
				event.TotalMillis = result.Summary.TotalMillis
			}
		}
		json.NewEncoder(c.App.Writer).Encode(event)
		return
	}

	stamp := time.Now().Format("15:04:05")
	if err != nil {
		fmt.Fprintf(c.App.Writer, "[%s] rebuild failed: %v\n", stamp, err)
		return
	}
	switch result.Source {
	case build.SourceCache:
		fmt.Fprintf(c.App.Writer, "[%s] index loaded from cache\n", stamp)
	default:
		line := fmt.Sprintf("[%s] rebuilt (%s)", stamp, result.MissReason)
		if result.Summary != nil {
			line += fmt.Sprintf(" in %.1f ms", result.Summary.TotalMillis)
		}
		fmt.Fprintln(c.App.Writer, line)
	}
}
