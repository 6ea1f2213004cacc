// package services defines the Signer interface for the streaming authorization service
package services

import (
	"context"

	"github.com/desertthunder/hlsx/internal/models"
)

// Signer issues and renews signed streaming URLs for tracks.
//
// Tokens are opaque strings embedded in the URL. Their expiry is enforced server-side and surfaces only as playback failures.
type Signer interface {
	// SignedURLWithRetry signs a fresh token for trackID, retrying transient failures, and returns the playback URL.
	SignedURLWithRetry(ctx context.Context, trackID string) (string, error)

	// CachedToken returns the last token issued for trackID, or "" when none is cached.
	CachedToken(ctx context.Context, trackID string) (string, error)

	// RefreshToken exchanges oldToken for a new token bound to trackID.
	RefreshToken(ctx context.Context, trackID, oldToken string) (string, error)

	// ForceRefreshURL discards any cached token and signs afresh, returning the playback URL.
	ForceRefreshURL(ctx context.Context, trackID string) (string, error)

	// StreamingURL builds the playback URL for trackID carrying token.
	StreamingURL(trackID, token string) string
}

// TokenStore caches the last issued token per track.
//
// Get returns [shared.ErrTokenNotFound] when no token is cached.
type TokenStore interface {
	Get(trackID string) (*models.StreamingToken, error)
	Put(token *models.StreamingToken) error
	Delete(trackID string) error
}
