// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// playCommand streams one or more tracks
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play tracks in the now-playing view, queueing any after the first",
		ArgsUsage: "<track-id> [track-id...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "headless",
				Usage: "Play without the terminal UI, logging progress instead",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write media bytes to this path (\"-\" for stdout)",
			},
			&cli.IntFlag{
				Name:  "volume",
				Usage: "Initial volume (0-100), overrides player.volume",
				Value: -1,
			},
			&cli.BoolFlag{
				Name:  "muted",
				Usage: "Start muted",
			},
		},
		Action: r.Play,
	}
}

// serveCommand runs the local control API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "Run the HTTP control API, optionally starting playback",
		ArgsUsage: "[track-id...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.host and server.port",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write media bytes to this path",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// tokenCommand inspects and manages cached streaming tokens
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage cached streaming tokens",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the cached token for a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.TokenShow,
			},
			{
				Name:  "list",
				Usage: "List cached tokens",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.TokenList,
			},
			{
				Name:  "refresh",
				Usage: "Refresh the token for a track and print its streaming URL",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Discard the cached token and sign afresh",
					},
				},
				Action: r.TokenRefresh,
			},
			{
				Name:   "clear",
				Usage:  "Delete all cached tokens",
				Action: r.TokenClear,
			},
		},
	}
}

// positionCommand manages saved playback positions
func positionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "position",
		Usage: "Manage saved playback positions",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the saved position for a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Action: r.PositionShow,
			},
			{
				Name:  "clear",
				Usage: "Forget the saved position for a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track-id"},
				},
				Action: r.PositionClear,
			},
			{
				Name:  "prune",
				Usage: "Forget positions not updated recently",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age past which positions are deleted",
						Value: 30 * 24 * time.Hour,
					},
				},
				Action: r.PositionPrune,
			},
		},
	}
}
