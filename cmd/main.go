package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	app := newApp(NewRunner(RunnerOpts{Logger: logger}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		stop()
		logger.Fatalf("application error: %v", err)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "hlsx",
		Usage:   "Stream signed HLS audio with automatic token refresh",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Before:   r.Configure,
		Commands: r.register(),
	}
}
