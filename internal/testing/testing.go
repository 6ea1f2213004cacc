// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
)

// FakeSigner is a test double for services.Signer.
//
// Each method delegates to its Func field when set and otherwise returns a deterministic default.
// Calls are counted per method name.
type FakeSigner struct {
	Base string

	SignedURLFunc    func(ctx context.Context, trackID string) (string, error)
	CachedTokenFunc  func(ctx context.Context, trackID string) (string, error)
	RefreshTokenFunc func(ctx context.Context, trackID, oldToken string) (string, error)
	ForceRefreshFunc func(ctx context.Context, trackID string) (string, error)

	mu    sync.Mutex
	calls map[string]int
	args  map[string][]string
}

func (f *FakeSigner) record(method string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
		f.args = make(map[string][]string)
	}
	f.calls[method]++
	f.args[method] = append(f.args[method], fmt.Sprint(args))
}

// Count returns how many times method was called.
func (f *FakeSigner) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Args returns the formatted arguments of each call to method.
func (f *FakeSigner) Args(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.args[method]...)
}

func (f *FakeSigner) SignedURLWithRetry(ctx context.Context, trackID string) (string, error) {
	f.record("SignedURLWithRetry", trackID)
	if f.SignedURLFunc != nil {
		return f.SignedURLFunc(ctx, trackID)
	}
	return f.StreamingURL(trackID, "tok-1"), nil
}

func (f *FakeSigner) CachedToken(ctx context.Context, trackID string) (string, error) {
	f.record("CachedToken", trackID)
	if f.CachedTokenFunc != nil {
		return f.CachedTokenFunc(ctx, trackID)
	}
	return "tok-1", nil
}

func (f *FakeSigner) RefreshToken(ctx context.Context, trackID, oldToken string) (string, error) {
	f.record("RefreshToken", trackID, oldToken)
	if f.RefreshTokenFunc != nil {
		return f.RefreshTokenFunc(ctx, trackID, oldToken)
	}
	return "tok-2", nil
}

func (f *FakeSigner) ForceRefreshURL(ctx context.Context, trackID string) (string, error) {
	f.record("ForceRefreshURL", trackID)
	if f.ForceRefreshFunc != nil {
		return f.ForceRefreshFunc(ctx, trackID)
	}
	return f.StreamingURL(trackID, "tok-force"), nil
}

func (f *FakeSigner) StreamingURL(trackID, token string) string {
	return fmt.Sprintf("%s/v1/stream/%s/master.m3u8?token=%s", f.Base, trackID, token)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// Ensure FCloser satisfies io.ReadCloser for use as a response body
var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
