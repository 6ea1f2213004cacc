package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
	tu "github.com/desertthunder/hlsx/internal/testing"
)

// signingAPI fakes the signing service. statuses are consumed one per request; once empty, requests succeed.
type signingAPI struct {
	mu       sync.Mutex
	statuses []int
	requests []signRequest
	paths    []string
	issued   int
}

func (a *signingAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %s", ct)
		}

		var body signRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		a.mu.Lock()
		a.requests = append(a.requests, body)
		a.paths = append(a.paths, r.URL.Path)
		status := http.StatusOK
		if len(a.statuses) > 0 {
			status = a.statuses[0]
			a.statuses = a.statuses[1:]
		}
		if status == http.StatusOK {
			a.issued++
		}
		issued := a.issued
		a.mu.Unlock()

		if status != http.StatusOK {
			http.Error(w, "nope", status)
			return
		}
		json.NewEncoder(w).Encode(signResponse{Token: fmt.Sprintf("tok-%d", issued)})
	}
}

func (a *signingAPI) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func newSigningFixture(t *testing.T, statuses ...int) (*SigningService, *signingAPI, *MemoryTokenStore) {
	t.Helper()

	api := &signingAPI{statuses: statuses}
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	store := NewMemoryTokenStore()
	svc := NewSigningService(SigningOpts{
		BaseURL:       server.URL,
		StreamBaseURL: "https://cdn.test",
		Store:         store,
		RetryDelay:    time.Millisecond,
	})
	return svc, api, store
}

func TestSigningService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSigningService", func(t *testing.T) {
		t.Run("fills defaults", func(t *testing.T) {
			svc := NewSigningService(SigningOpts{})
			if svc.baseURL != "http://127.0.0.1:8090" {
				t.Errorf("unexpected base URL %s", svc.baseURL)
			}
			if svc.streamBase != svc.baseURL {
				t.Errorf("expected stream base to default to base URL, got %s", svc.streamBase)
			}
			if svc.attempts != 3 {
				t.Errorf("expected 3 attempts, got %d", svc.attempts)
			}
			if svc.httpClient != http.DefaultClient {
				t.Error("expected default HTTP client")
			}
		})

		t.Run("trims trailing slashes", func(t *testing.T) {
			svc := NewSigningService(SigningOpts{BaseURL: "http://sign.test/", StreamBaseURL: "https://cdn.test/"})
			if got := svc.StreamingURL("a", "t"); got != "https://cdn.test/v1/stream/a/master.m3u8?token=t" {
				t.Errorf("unexpected URL %s", got)
			}
		})
	})

	t.Run("StreamingURL", func(t *testing.T) {
		svc := NewSigningService(SigningOpts{StreamBaseURL: "https://cdn.test"})
		got := svc.StreamingURL("track 1", "a+b/c")
		want := "https://cdn.test/v1/stream/track%201/master.m3u8?token=a%2Bb%2Fc"
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("SignedURLWithRetry", func(t *testing.T) {
		t.Run("signs and caches token", func(t *testing.T) {
			svc, api, store := newSigningFixture(t)

			got, err := svc.SignedURLWithRetry(ctx, "track-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != "https://cdn.test/v1/stream/track-1/master.m3u8?token=tok-1" {
				t.Errorf("unexpected URL %s", got)
			}
			if api.paths[0] != signPath || api.requests[0].TrackID != "track-1" {
				t.Errorf("unexpected request %s %+v", api.paths[0], api.requests[0])
			}

			cached, err := store.Get("track-1")
			if err != nil || cached.Value != "tok-1" {
				t.Errorf("expected cached tok-1, got %+v (%v)", cached, err)
			}
		})

		t.Run("retries server errors", func(t *testing.T) {
			svc, api, _ := newSigningFixture(t, http.StatusBadGateway, http.StatusServiceUnavailable)

			if _, err := svc.SignedURLWithRetry(ctx, "track-1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := api.Calls(); got != 3 {
				t.Errorf("expected 3 calls, got %d", got)
			}
		})

		t.Run("gives up after max attempts", func(t *testing.T) {
			svc, api, _ := newSigningFixture(t, 500, 500, 500, 500)

			_, err := svc.SignedURLWithRetry(ctx, "track-1")
			if !errors.Is(err, shared.ErrSigningFailed) {
				t.Fatalf("expected ErrSigningFailed, got %v", err)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != 500 {
				t.Errorf("expected wrapped StatusError, got %v", err)
			}
			if got := api.Calls(); got != 3 {
				t.Errorf("expected 3 calls, got %d", got)
			}
		})

		t.Run("does not retry client errors", func(t *testing.T) {
			svc, api, _ := newSigningFixture(t, http.StatusForbidden)

			if _, err := svc.SignedURLWithRetry(ctx, "track-1"); err == nil {
				t.Fatal("expected error")
			}
			if got := api.Calls(); got != 1 {
				t.Errorf("expected 1 call, got %d", got)
			}
		})

		t.Run("retries rate limiting", func(t *testing.T) {
			svc, api, _ := newSigningFixture(t, http.StatusTooManyRequests)

			if _, err := svc.SignedURLWithRetry(ctx, "track-1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := api.Calls(); got != 2 {
				t.Errorf("expected 2 calls, got %d", got)
			}
		})

		t.Run("rejects empty track ID", func(t *testing.T) {
			svc, api, _ := newSigningFixture(t)
			if _, err := svc.SignedURLWithRetry(ctx, ""); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if api.Calls() != 0 {
				t.Error("expected no request")
			}
		})

		t.Run("stops on cancelled context", func(t *testing.T) {
			svc, _, _ := newSigningFixture(t, 500, 500, 500)
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			if _, err := svc.SignedURLWithRetry(cctx, "track-1"); !errors.Is(err, shared.ErrSigningFailed) {
				t.Errorf("expected ErrSigningFailed, got %v", err)
			}
		})

		t.Run("transport failure", func(t *testing.T) {
			svc := NewSigningService(SigningOpts{
				HTTPClient:    &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))},
				RetryAttempts: 2,
			})

			_, err := svc.SignedURLWithRetry(ctx, "track-1")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("unreadable response body", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: make(http.Header)}
			svc := NewSigningService(SigningOpts{
				HTTPClient:    &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)},
				RetryAttempts: 1,
			})

			_, err := svc.SignedURLWithRetry(ctx, "track-1")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected read failure, got %v", err)
			}
		})
	})

	t.Run("CachedToken", func(t *testing.T) {
		svc, _, store := newSigningFixture(t)

		t.Run("empty when missing", func(t *testing.T) {
			got, err := svc.CachedToken(ctx, "missing")
			if err != nil || got != "" {
				t.Errorf("expected empty token, got %q (%v)", got, err)
			}
		})

		t.Run("returns stored value", func(t *testing.T) {
			store.Put(models.NewStreamingToken("track-1", "cached"))
			got, err := svc.CachedToken(ctx, "track-1")
			if err != nil || got != "cached" {
				t.Errorf("expected cached, got %q (%v)", got, err)
			}
		})
	})

	t.Run("RefreshToken", func(t *testing.T) {
		t.Run("exchanges and caches", func(t *testing.T) {
			svc, api, store := newSigningFixture(t)
			store.Put(models.NewStreamingToken("track-1", "old"))

			got, err := svc.RefreshToken(ctx, "track-1", "old")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != "tok-1" {
				t.Errorf("expected tok-1, got %s", got)
			}
			if api.paths[0] != refreshPath || api.requests[0].OldToken != "old" {
				t.Errorf("unexpected request %s %+v", api.paths[0], api.requests[0])
			}

			cached, _ := store.Get("track-1")
			if cached.Value != "tok-1" || cached.RefreshCount != 1 || cached.RefreshedAt == nil {
				t.Errorf("expected refreshed cache entry, got %+v", cached)
			}
		})

		t.Run("requires old token", func(t *testing.T) {
			svc, api, _ := newSigningFixture(t)

			_, err := svc.RefreshToken(ctx, "track-1", "")
			if !errors.Is(err, shared.ErrNoRefreshToken) || !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
			if api.Calls() != 0 {
				t.Error("expected no request without a token")
			}
		})

		t.Run("wraps rejection", func(t *testing.T) {
			svc, api, _ := newSigningFixture(t, http.StatusUnauthorized)

			_, err := svc.RefreshToken(ctx, "track-1", "old")
			if !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrRefreshFailed, got %v", err)
			}
			if api.Calls() != 1 {
				t.Errorf("expected a single attempt, got %d", api.Calls())
			}
		})
	})

	t.Run("ForceRefreshURL", func(t *testing.T) {
		t.Run("replaces cached token", func(t *testing.T) {
			svc, api, store := newSigningFixture(t)
			store.Put(models.NewStreamingToken("track-1", "stale"))

			got, err := svc.ForceRefreshURL(ctx, "track-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasSuffix(got, "token=tok-1") {
				t.Errorf("unexpected URL %s", got)
			}
			if api.requests[0].OldToken != "" {
				t.Error("expected force refresh to ignore the cached token")
			}

			cached, _ := store.Get("track-1")
			if cached.Value != "tok-1" || cached.RefreshCount != 0 {
				t.Errorf("expected fresh token in cache, got %+v", cached)
			}
		})

		t.Run("single attempt and empty cache on failure", func(t *testing.T) {
			svc, api, store := newSigningFixture(t, 500, 500)
			store.Put(models.NewStreamingToken("track-1", "stale"))

			if _, err := svc.ForceRefreshURL(ctx, "track-1"); !errors.Is(err, shared.ErrSigningFailed) {
				t.Errorf("expected ErrSigningFailed, got %v", err)
			}
			if api.Calls() != 1 {
				t.Errorf("expected 1 call, got %d", api.Calls())
			}
			if _, err := store.Get("track-1"); !errors.Is(err, shared.ErrTokenNotFound) {
				t.Errorf("expected cache to be cleared, got %v", err)
			}
		})
	})

	t.Run("StatusError", func(t *testing.T) {
		tests := []struct {
			code int
			want bool
		}{
			{400, false},
			{401, false},
			{429, true},
			{500, true},
			{503, true},
		}
		for _, tt := range tests {
			if got := (&StatusError{StatusCode: tt.code}).Temporary(); got != tt.want {
				t.Errorf("Temporary(%d) = %v, want %v", tt.code, got, tt.want)
			}
		}
	})
}

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore()

	t.Run("missing token", func(t *testing.T) {
		if _, err := store.Get("nope"); !errors.Is(err, shared.ErrTokenNotFound) {
			t.Errorf("expected ErrTokenNotFound, got %v", err)
		}
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		if err := store.Put(&models.StreamingToken{TrackID: "a"}); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("put get delete", func(t *testing.T) {
		if err := store.Put(models.NewStreamingToken("a", "v")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := store.Get("a")
		if err != nil || got.Value != "v" {
			t.Errorf("expected v, got %+v (%v)", got, err)
		}
		if err := store.Delete("a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.Get("a"); !errors.Is(err, shared.ErrTokenNotFound) {
			t.Errorf("expected deleted token to be missing, got %v", err)
		}
	})
}
