package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/hlsx/internal/server"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the HTTP control API over a playback session until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := r.startSession(ctx, sessionOpts{out: cmd.String("out"), volume: -1})
	if err != nil {
		return err
	}
	defer s.Close()

	router := server.NewBasicRouter()
	router.Use(server.Recovery(r.logger), server.Logging(r.logger))
	router.Handler(server.NewControlHandler(s.manager, r.logger))
	router.Handle(http.MethodGet, "/metrics", s.metrics.Handler())

	if ids := cmd.Args().Slice(); len(ids) > 0 {
		if err := s.manager.Enqueue(ids[1:]...); err != nil {
			return err
		}
		go func() {
			if err := s.manager.LoadTrack(ctx, ids[0]); err != nil {
				r.logger.Error("failed to load track", "track", ids[0], "error", err)
			}
		}()
	}

	return r.listen(ctx, server.NewHTTPServer(addr, router))
}

// listen serves srv until ctx is done, then shuts it down gracefully.
func (r *Runner) listen(ctx context.Context, srv *http.Server) error {
	errs := make(chan error, 1)
	go func() {
		r.logger.Info("control API listening", "addr", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control API failed: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down control API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down control API: %w", err)
	}
	return nil
}
