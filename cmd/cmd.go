// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/lbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

func sourceNames() string {
	names := make([]string, 0, len(tasks.Sources()))
	for _, s := range tasks.Sources() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func sourceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "source",
		Aliases: []string{"s"},
		Usage:   "Recommendation source (" + sourceNames() + ")",
		Value:   string(tasks.SourceRecommendations),
	}
}

func nameFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "name",
		Aliases: []string{"n"},
		Usage:   "Plex playlist name (defaults to the configured name for the source)",
	}
}

// setupCommand handles first-run configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "check",
				Usage:  "Validate the loaded configuration",
				Action: r.SetupCheck,
			},
		},
	}
}

// syncCommand reconciles Plex playlists with ListenBrainz.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile Plex playlists with ListenBrainz",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Sync one playlist",
				Flags: []cli.Flag{
					sourceFlag(),
					nameFlag(),
					&cli.BoolFlag{
						Name:  "tui",
						Usage: "Show progress in an interactive terminal UI",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:   "all",
				Usage:  "Sync every configured playlist",
				Action: r.SyncAll,
			},
			{
				Name:    "ui",
				Aliases: []string{"tui"},
				Usage:   "Pick a configured playlist and sync it interactively",
				Action:  r.TUI,
			},
		},
	}
}

// resolveCommand runs resolution and matching without writing.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve recordings and match them in Plex without touching playlists",
		Flags: []cli.Flag{
			sourceFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (text, markdown, csv, json)",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
		},
		Action: r.Resolve,
	}
}

// planCommand previews a reconciliation.
func planCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "plan",
		Usage:  "Show how a playlist would be reconciled without changing it",
		Flags:  []cli.Flag{sourceFlag(), nameFlag()},
		Action: r.Plan,
	}
}

// feedCommand inspects the ListenBrainz feed.
func feedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Inspect the ListenBrainz feed",
		Commands: []*cli.Command{
			{
				Name:  "recommendations",
				Usage: "List collaborative-filtering recommendations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Skip the configured listened/days filters",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of recommendations to print",
						Value: 25,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.FeedRecommendations,
			},
			{
				Name:  "playlists",
				Usage: "List playlists generated for the user",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.FeedPlaylists,
			},
		},
	}
}

// artistsCommand builds the Lidarr import list once.
func artistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artists",
		Usage: "Resolve recommendations to a Lidarr artist list",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the list to a file instead of stdout",
			},
		},
		Action: r.Artists,
	}
}

// serveCommand runs the daemon.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the Lidarr list and sync playlists on a schedule",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// healthCommand queries a running daemon.
func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Query a running daemon's /health endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Health endpoint (defaults to the configured port on localhost)",
			},
		},
		Action: r.Health,
	}
}
