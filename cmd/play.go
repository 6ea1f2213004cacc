package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/hlsx/internal/player"
	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/urfave/cli/v3"
)

// headlessPollInterval is how often headless playback checks for completion.
const headlessPollInterval = time.Second

// Play streams the given tracks in order, in the now-playing view or headless.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one track ID is required", shared.ErrMissingArgument)
	}

	headless := cmd.Bool("headless")
	out := cmd.String("out")
	if !headless && out == "-" {
		return fmt.Errorf("%w: --out - requires --headless, stdout is used by the UI", shared.ErrInvalidArgument)
	}

	if !headless {
		// Redirect logs to file to avoid interfering with TUI rendering
		fileLogger, err := shared.NewFileLogger(r.config.Log.File)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
		r.SetLogger(fileLogger)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := r.startSession(ctx, sessionOpts{
		out:    out,
		volume: int(cmd.Int("volume")),
		muted:  cmd.Bool("muted"),
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.manager.Enqueue(ids[1:]...); err != nil {
		return err
	}

	if headless {
		if err := s.manager.LoadTrack(ctx, ids[0]); err != nil {
			return fmt.Errorf("failed to load track %s: %w", ids[0], err)
		}
		return r.waitHeadless(ctx, s.manager)
	}

	// The view shows loading progress, so the first load runs behind it.
	go func() {
		if err := s.manager.LoadTrack(ctx, ids[0]); err != nil {
			r.logger.Error("failed to load track", "track", ids[0], "error", err)
		}
	}()
	return r.runTUI(ctx, s.manager)
}

// waitHeadless blocks until the queue has played out, the session expires or ctx is done.
func (r *Runner) waitHeadless(ctx context.Context, m *player.Manager) error {
	ticker := time.NewTicker(headlessPollInterval)
	defer ticker.Stop()

	var lastTrack string
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("playback interrupted")
			return nil
		case <-ticker.C:
		}

		s := m.Snapshot()
		if s.TrackID != lastTrack {
			r.logger.Info("now playing", "track", s.TrackID, "session", s.SessionID, "duration", s.Duration)
			lastTrack = s.TrackID
		}
		r.logger.Debug("progress", "track", s.TrackID, "position", s.Position, "state", s.State, "refresh", s.Refresh)

		if done, err := finished(s); done {
			return err
		}
	}
}

// finished reports whether headless playback should stop, and with which error.
//
// Session errors are terminal: the manager only records one once it has given up on the stream.
func finished(s player.Snapshot) (bool, error) {
	if s.Refresh.Phase == player.RefreshExpired {
		return true, shared.ErrSessionExpired
	}
	if s.Error != "" {
		return true, fmt.Errorf("playback stopped: %s", s.Error)
	}
	ended := s.Duration > 0 && s.Position >= s.Duration
	return ended && !s.Playing && len(s.Queue) == 0, nil
}
