// Streaming authorization service implementation of [Signer]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	signPath    = "/v1/stream/sign"
	refreshPath = "/v1/stream/refresh"
)

type signRequest struct {
	TrackID  string `json:"track_id"`
	OldToken string `json:"old_token,omitempty"`
}

type signResponse struct {
	Token string `json:"token"`
}

// StatusError is returned when the signing service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("signing service returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// SigningService implements [Signer] against the streaming authorization HTTP API.
type SigningService struct {
	baseURL    string
	streamBase string
	httpClient *http.Client
	store      TokenStore
	attempts   int
	delay      time.Duration
	logger     *log.Logger
}

// SigningOpts contains configuration for a [SigningService].
type SigningOpts struct {
	BaseURL       string        // Signing API origin
	StreamBaseURL string        // Manifest origin (defaults to BaseURL)
	HTTPClient    *http.Client  // Transport (default: http.DefaultClient)
	Store         TokenStore    // Token cache (default: in-memory)
	RetryAttempts int           // Attempts for SignedURLWithRetry (default: 3)
	RetryDelay    time.Duration // Spacing between attempts
	Logger        *log.Logger
}

// NewSigningService creates a [SigningService], filling unset options with defaults.
func NewSigningService(opts SigningOpts) *SigningService {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://127.0.0.1:8090"
	}
	if opts.StreamBaseURL == "" {
		opts.StreamBaseURL = opts.BaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Store == nil {
		opts.Store = NewMemoryTokenStore()
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	return &SigningService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		streamBase: strings.TrimRight(opts.StreamBaseURL, "/"),
		httpClient: opts.HTTPClient,
		store:      opts.Store,
		attempts:   opts.RetryAttempts,
		delay:      opts.RetryDelay,
		logger:     opts.Logger,
	}
}

// NewSigningServiceFromConfig builds a [SigningService] from configuration.
//
// When a client ID is configured, requests are authenticated with OAuth2 client credentials.
// The [oauth2] transport fetches and renews its access token on its own.
func NewSigningServiceFromConfig(ctx context.Context, cfg shared.SigningConfig, store TokenStore, logger *log.Logger) *SigningService {
	client := &http.Client{Timeout: cfg.Timeout()}

	if cfg.ClientID != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		authed := cc.Client(context.WithValue(ctx, oauth2.HTTPClient, client))
		authed.Timeout = cfg.Timeout()
		client = authed
	}

	return NewSigningService(SigningOpts{
		BaseURL:       cfg.BaseURL,
		StreamBaseURL: cfg.StreamOrigin(),
		HTTPClient:    client,
		Store:         store,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay(),
		Logger:        logger,
	})
}

// SignedURLWithRetry signs a new token for trackID and returns its playback URL.
//
// Transport failures, 5xx and 429 responses are retried up to the configured attempt count, paced by a [rate.Limiter].
// Other 4xx responses fail immediately.
func (s *SigningService) SignedURLWithRetry(ctx context.Context, trackID string) (string, error) {
	if trackID == "" {
		return "", fmt.Errorf("%w: track ID is required", shared.ErrInvalidInput)
	}

	// A zero delay yields rate.Inf, so attempts run back to back
	limiter := rate.NewLimiter(rate.Every(s.delay), 1)

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %w", shared.ErrSigningFailed, err)
		}

		token, err := s.sign(ctx, trackID)
		if err == nil {
			return s.StreamingURL(trackID, token), nil
		}
		lastErr = err

		if !retryable(err) {
			break
		}
		s.logger.Warn("signing attempt failed", "track", trackID, "attempt", attempt, "max_attempts", s.attempts, "error", err)
	}

	return "", fmt.Errorf("%w: %w", shared.ErrSigningFailed, lastErr)
}

// CachedToken returns the cached token for trackID or "" when none exists.
func (s *SigningService) CachedToken(_ context.Context, trackID string) (string, error) {
	token, err := s.store.Get(trackID)
	if errors.Is(err, shared.ErrTokenNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cached token: %w", err)
	}
	return token.Value, nil
}

// RefreshToken exchanges oldToken for a new one and caches it.
func (s *SigningService) RefreshToken(ctx context.Context, trackID, oldToken string) (string, error) {
	if oldToken == "" {
		return "", fmt.Errorf("%w: %w for %s", shared.ErrRefreshFailed, shared.ErrNoRefreshToken, trackID)
	}

	var resp signResponse
	if err := s.post(ctx, refreshPath, signRequest{TrackID: trackID, OldToken: oldToken}, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	previous, err := s.store.Get(trackID)
	if err != nil {
		previous = models.NewStreamingToken(trackID, oldToken)
	}
	if err := s.store.Put(previous.Refreshed(resp.Token)); err != nil {
		s.logger.Warn("failed to cache refreshed token", "track", trackID, "error", err)
	}

	return resp.Token, nil
}

// ForceRefreshURL drops the cached token for trackID and signs a new one in a single attempt.
func (s *SigningService) ForceRefreshURL(ctx context.Context, trackID string) (string, error) {
	if err := s.store.Delete(trackID); err != nil {
		s.logger.Warn("failed to drop cached token", "track", trackID, "error", err)
	}

	token, err := s.sign(ctx, trackID)
	if err != nil {
		return "", fmt.Errorf("%w: force refresh: %w", shared.ErrSigningFailed, err)
	}
	return s.StreamingURL(trackID, token), nil
}

// StreamingURL returns {stream_base}/v1/stream/{trackID}/master.m3u8?token={token}.
func (s *SigningService) StreamingURL(trackID, token string) string {
	return fmt.Sprintf("%s/v1/stream/%s/master.m3u8?token=%s", s.streamBase, url.PathEscape(trackID), url.QueryEscape(token))
}

// sign requests a new token for trackID and caches it.
func (s *SigningService) sign(ctx context.Context, trackID string) (string, error) {
	var resp signResponse
	if err := s.post(ctx, signPath, signRequest{TrackID: trackID}, &resp); err != nil {
		return "", err
	}

	if err := s.store.Put(models.NewStreamingToken(trackID, resp.Token)); err != nil {
		s.logger.Warn("failed to cache token", "track", trackID, "error", err)
	}
	return resp.Token, nil
}

func (s *SigningService) post(ctx context.Context, path string, body signRequest, out *signResponse) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Token == "" {
		return fmt.Errorf("signing service returned an empty token")
	}
	return nil
}

// retryable reports whether err is worth another signing attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return errors.Is(err, shared.ErrAPIRequest)
}
