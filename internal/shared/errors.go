package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Signing service errors
	ErrSigningFailed   = fmt.Errorf("stream signing failed")
	ErrRefreshFailed   = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken  = fmt.Errorf("no cached token available")
	ErrTokenNotFound   = fmt.Errorf("token not found")
	ErrPositionMissing = fmt.Errorf("playback position not found")

	// Playback errors, surfaced to the UI as the session error
	ErrAuthorizationExpired = fmt.Errorf("stream authorization expired")
	ErrNetworkPlayback      = fmt.Errorf("network error during playback")
	ErrMediaPlayback        = fmt.Errorf("media error during playback")
	ErrUnknownPlayback      = fmt.Errorf("unknown playback error")
	ErrSessionExpired       = fmt.Errorf("session expired, please reload the track")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrNoSession          = fmt.Errorf("no active playback session")
	ErrQueueEmpty         = fmt.Errorf("queue is empty")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
