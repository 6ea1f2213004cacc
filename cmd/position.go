package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/urfave/cli/v3"
)

// PositionShow prints the saved playback position for a track.
func (r *Runner) PositionShow(ctx context.Context, cmd *cli.Command) error {
	trackID, err := trackArg(cmd)
	if err != nil {
		return err
	}

	db, _, positions, err := r.openRepositories()
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := positions.Get(trackID)
	if err != nil {
		return err
	}

	r.writePlain("Track:    %s\n", p.TrackID)
	r.writePlain("Position: %s of %s\n", p.Position.Truncate(time.Millisecond), p.Duration.Truncate(time.Millisecond))
	return r.writePlain("Updated:  %s\n", p.UpdatedAt.Format(time.RFC3339))
}

// PositionClear forgets the saved playback position for a track.
func (r *Runner) PositionClear(ctx context.Context, cmd *cli.Command) error {
	trackID, err := trackArg(cmd)
	if err != nil {
		return err
	}

	db, _, positions, err := r.openRepositories()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := positions.Delete(trackID); err != nil {
		return err
	}
	return r.writePlain("✓ Cleared saved position for %s\n", trackID)
}

// PositionPrune deletes positions that have not been updated within --older-than.
func (r *Runner) PositionPrune(ctx context.Context, cmd *cli.Command) error {
	age := cmd.Duration("older-than")
	if age <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", shared.ErrInvalidArgument)
	}

	db, _, positions, err := r.openRepositories()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := positions.Prune(time.Now().UTC().Add(-age))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Pruned %d saved positions\n", n)
}
