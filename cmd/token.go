package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/urfave/cli/v3"
)

// tokenView is the JSON shape of a cached token. The value is truncated unless shown for a single track.
type tokenView struct {
	TrackID      string     `json:"track_id"`
	Token        string     `json:"token"`
	IssuedAt     time.Time  `json:"issued_at"`
	RefreshedAt  *time.Time `json:"refreshed_at,omitempty"`
	RefreshCount int        `json:"refresh_count"`
}

func newTokenView(t *models.StreamingToken, full bool) tokenView {
	value := t.Value
	if !full {
		value = abbreviate(value)
	}
	return tokenView{
		TrackID:      t.TrackID,
		Token:        value,
		IssuedAt:     t.IssuedAt,
		RefreshedAt:  t.RefreshedAt,
		RefreshCount: t.RefreshCount,
	}
}

// abbreviate keeps the first and last four characters of long token values.
func abbreviate(v string) string {
	if len(v) <= 12 {
		return v
	}
	return v[:4] + "…" + v[len(v)-4:]
}

func trackArg(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.StringArg("track-id"))
	if id == "" {
		return "", fmt.Errorf("%w: track ID is required", shared.ErrMissingArgument)
	}
	return id, nil
}

// TokenShow prints the cached token for a track.
func (r *Runner) TokenShow(ctx context.Context, cmd *cli.Command) error {
	trackID, err := trackArg(cmd)
	if err != nil {
		return err
	}

	db, tokens, _, err := r.openRepositories()
	if err != nil {
		return err
	}
	defer db.Close()

	token, err := tokens.Get(trackID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(newTokenView(token, true), true)
	}

	r.writePlain("Track:     %s\n", token.TrackID)
	r.writePlain("Token:     %s\n", token.Value)
	r.writePlain("Issued:    %s\n", token.IssuedAt.Format(time.RFC3339))
	if token.RefreshedAt != nil {
		r.writePlain("Refreshed: %s (%d times)\n", token.RefreshedAt.Format(time.RFC3339), token.RefreshCount)
	}
	return nil
}

// TokenList prints every cached token.
func (r *Runner) TokenList(ctx context.Context, cmd *cli.Command) error {
	db, tokens, _, err := r.openRepositories()
	if err != nil {
		return err
	}
	defer db.Close()

	list, err := tokens.List()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]tokenView, len(list))
		for i, t := range list {
			views[i] = newTokenView(t, false)
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(list) == 0 {
		return r.writePlain("No cached tokens\n")
	}
	for _, t := range list {
		r.writePlain("%-36s  %s  refreshed %d×\n", t.TrackID, abbreviate(t.Value), t.RefreshCount)
	}
	return nil
}

// TokenRefresh refreshes the cached token for a track and prints the new streaming URL.
//
// Without a cached token, or with --force, a new token is signed instead.
func (r *Runner) TokenRefresh(ctx context.Context, cmd *cli.Command) error {
	trackID, err := trackArg(cmd)
	if err != nil {
		return err
	}

	db, tokens, _, err := r.openRepositories()
	if err != nil {
		return err
	}
	defer db.Close()

	signer := r.newSigner(ctx, tokens)

	var url string
	if cmd.Bool("force") {
		url, err = signer.ForceRefreshURL(ctx, trackID)
	} else {
		url, err = r.refreshOrSign(ctx, signer, trackID)
	}
	if err != nil {
		return err
	}

	r.logger.Info("token refreshed", "track", trackID)
	return r.writePlain("%s\n", url)
}

type tokenRefresher interface {
	CachedToken(ctx context.Context, trackID string) (string, error)
	RefreshToken(ctx context.Context, trackID, oldToken string) (string, error)
	SignedURLWithRetry(ctx context.Context, trackID string) (string, error)
	StreamingURL(trackID, token string) string
}

func (r *Runner) refreshOrSign(ctx context.Context, signer tokenRefresher, trackID string) (string, error) {
	old, err := signer.CachedToken(ctx, trackID)
	if err != nil {
		return "", err
	}
	if old == "" {
		r.logger.Info("no cached token, signing a new one", "track", trackID)
		return signer.SignedURLWithRetry(ctx, trackID)
	}

	token, err := signer.RefreshToken(ctx, trackID, old)
	if err != nil {
		if errors.Is(err, shared.ErrNoRefreshToken) {
			return signer.SignedURLWithRetry(ctx, trackID)
		}
		return "", err
	}
	return signer.StreamingURL(trackID, token), nil
}

// TokenClear deletes every cached token.
func (r *Runner) TokenClear(ctx context.Context, cmd *cli.Command) error {
	db, tokens, _, err := r.openRepositories()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := tokens.Clear()
	if err != nil {
		return err
	}
	return r.writePlain("✓ Cleared %d cached tokens\n", n)
}
