package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/hlsx/internal/metrics"
	"github.com/desertthunder/hlsx/internal/player"
	"github.com/desertthunder/hlsx/internal/shared"
)

// fakePlayer records calls and returns canned errors.
type fakePlayer struct {
	mu       sync.Mutex
	calls    []string
	snapshot player.Snapshot
	err      error
}

func (p *fakePlayer) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return p.err
}

func (p *fakePlayer) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePlayer) LoadTrack(_ context.Context, id string) error {
	if err := p.record("load " + id); err != nil {
		return err
	}
	p.mu.Lock()
	p.snapshot.TrackID = id
	p.snapshot.State = player.StateReady
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Play() error         { return p.record("play") }
func (p *fakePlayer) Pause()              { _ = p.record("pause") }
func (p *fakePlayer) SetMuted(muted bool) { _ = p.record(fmt.Sprintf("mute %v", muted)) }

func (p *fakePlayer) Seek(ms int64) error {
	return p.record(fmt.Sprintf("seek %d", ms))
}

func (p *fakePlayer) SetVolume(level int) error {
	return p.record(fmt.Sprintf("volume %d", level))
}

func (p *fakePlayer) Next(context.Context) error { return p.record("next") }

func (p *fakePlayer) Enqueue(ids ...string) error {
	return p.record("enqueue " + strings.Join(ids, ","))
}

func (p *fakePlayer) Snapshot() player.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

func newTestRouter(p Player, logs io.Writer) *BasicRouter {
	logger := shared.NewLogger(logs)
	r := NewBasicRouter()
	r.Use(Recovery(logger), Logging(logger))
	r.Handler(NewControlHandler(p, logger))
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	} else {
		rdr = http.NoBody
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var s statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	return s
}

func TestBasicRouter(t *testing.T) {
	t.Run("method patterns", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("pong"))
		})

		if rec := do(t, r, http.MethodGet, "/ping", ""); rec.Code != http.StatusOK || rec.Body.String() != "pong" {
			t.Errorf("GET /ping = %d %q", rec.Code, rec.Body.String())
		}
		if rec := do(t, r, http.MethodPost, "/ping", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST /ping = %d, want 405", rec.Code)
		}
	})

	t.Run("empty method matches any", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc("", "/any", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			if rec := do(t, r, m, "/any", ""); rec.Code != http.StatusNoContent {
				t.Errorf("%s /any = %d", m, rec.Code)
			}
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc(http.MethodGet, "/", func(http.ResponseWriter, *http.Request) { order = append(order, "handler") })
		do(t, r, http.MethodGet, "/", "")

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("order = %s", got)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("logging records status", func(t *testing.T) {
		var logs bytes.Buffer
		h := Logging(shared.NewLogger(&logs))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		do(t, h, http.MethodGet, "/brew", "")

		out := logs.String()
		for _, want := range []string{"method=GET", "path=/brew", "status=418"} {
			if !strings.Contains(out, want) {
				t.Errorf("log %q missing %q", out, want)
			}
		}
	})

	t.Run("logging defaults to 200", func(t *testing.T) {
		var logs bytes.Buffer
		h := Logging(shared.NewLogger(&logs))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		do(t, h, http.MethodGet, "/", "")

		if !strings.Contains(logs.String(), "status=200") {
			t.Errorf("log %q missing status=200", logs.String())
		}
	})

	t.Run("recovery", func(t *testing.T) {
		var logs bytes.Buffer
		h := Recovery(shared.NewLogger(&logs))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := do(t, h, http.MethodGet, "/", "")

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
		if !strings.Contains(logs.String(), "boom") {
			t.Errorf("panic not logged: %q", logs.String())
		}
	})
}

func TestControlHandler(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		p := &fakePlayer{snapshot: player.Snapshot{
			TrackID:  "A",
			State:    player.StatePlaying,
			Playing:  true,
			Position: 42300 * time.Millisecond,
			Duration: 3 * time.Minute,
			Volume:   80,
		}}
		rec := do(t, newTestRouter(p, io.Discard), http.MethodGet, "/status", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}

		s := decodeStatus(t, rec)
		if s.TrackID != "A" || s.State != "playing" || s.PositionMS != 42300 || s.DurationMS != 180000 {
			t.Errorf("unexpected status %+v", s)
		}
		if s.Refresh != "idle" {
			t.Errorf("refresh = %q, want idle", s.Refresh)
		}
		if s.Queue == nil {
			t.Error("queue should encode as an empty list")
		}
	})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{"load", http.MethodPost, "/load", `{"track_id":"A"}`, "load A"},
		{"play", http.MethodPost, "/play", "", "play"},
		{"pause", http.MethodPost, "/pause", "", "pause"},
		{"seek", http.MethodPost, "/seek", `{"offset_ms":42300}`, "seek 42300"},
		{"seek to zero", http.MethodPost, "/seek", `{"offset_ms":0}`, "seek 0"},
		{"volume", http.MethodPost, "/volume", `{"level":55}`, "volume 55"},
		{"mute", http.MethodPost, "/mute", `{"muted":true}`, "mute true"},
		{"next", http.MethodPost, "/next", "", "next"},
		{"queue", http.MethodPost, "/queue", `{"track_ids":["B","C"]}`, "enqueue B,C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePlayer{}
			rec := do(t, newTestRouter(p, io.Discard), tt.method, tt.path, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("%s %s = %d: %s", tt.method, tt.path, rec.Code, rec.Body.String())
			}
			calls := p.Calls()
			if len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", calls, tt.want)
			}
		})
	}

	t.Run("load answers with the new snapshot", func(t *testing.T) {
		p := &fakePlayer{}
		rec := do(t, newTestRouter(p, io.Discard), http.MethodPost, "/load", `{"track_id":"A"}`)
		if s := decodeStatus(t, rec); s.TrackID != "A" || s.State != "ready" {
			t.Errorf("unexpected status %+v", s)
		}
	})

	t.Run("validation", func(t *testing.T) {
		cases := []struct{ path, body string }{
			{"/load", `{}`},
			{"/load", `{"track_id":""}`},
			{"/seek", `{}`},
			{"/volume", `{}`},
			{"/mute", `not json`},
		}
		for _, c := range cases {
			p := &fakePlayer{}
			rec := do(t, newTestRouter(p, io.Discard), http.MethodPost, c.path, c.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("POST %s %s = %d, want 400", c.path, c.body, rec.Code)
			}
			if len(p.Calls()) != 0 {
				t.Errorf("POST %s %s reached the player: %v", c.path, c.body, p.Calls())
			}
		}
	})

	t.Run("error statuses", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{shared.ErrInvalidArgument, http.StatusBadRequest},
			{shared.ErrNoSession, http.StatusConflict},
			{shared.ErrQueueEmpty, http.StatusConflict},
			{shared.ErrSessionExpired, http.StatusConflict},
			{player.ErrClosed, http.StatusServiceUnavailable},
			{fmt.Errorf("%w: 500", shared.ErrSigningFailed), http.StatusBadGateway},
			{io.ErrUnexpectedEOF, http.StatusInternalServerError},
		}
		for _, c := range cases {
			p := &fakePlayer{err: c.err}
			rec := do(t, newTestRouter(p, io.Discard), http.MethodPost, "/play", "")
			if rec.Code != c.want {
				t.Errorf("%v: status = %d, want %d", c.err, rec.Code, c.want)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Error != c.err.Error() {
				t.Errorf("%v: body = %+v, %v", c.err, body, err)
			}
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := do(t, newTestRouter(&fakePlayer{}, io.Discard), http.MethodGet, "/play", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET /play = %d, want 405", rec.Code)
		}
	})
}

func TestWriteJSON(t *testing.T) {
	t.Run("encodes value", func(t *testing.T) {
		var logs bytes.Buffer
		rec := httptest.NewRecorder()
		writeJSON(shared.NewLogger(&logs), rec, http.StatusCreated, errorResponse{Error: "nope"})

		if rec.Code != http.StatusCreated {
			t.Errorf("status = %d, want 201", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if !strings.Contains(rec.Body.String(), `"error":"nope"`) {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
		if logs.Len() != 0 {
			t.Errorf("expected no logs, got %q", logs.String())
		}
	})

	t.Run("logs encode failure", func(t *testing.T) {
		var logs bytes.Buffer
		rec := httptest.NewRecorder()
		writeJSON(shared.NewLogger(&logs), rec, http.StatusOK, map[string]any{"ch": make(chan int)})

		if !strings.Contains(logs.String(), "failed to encode response") {
			t.Errorf("encode error not logged: %q", logs.String())
		}
	})
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.NewMetrics()
	m.RecordTokenRefresh("success")

	r := newTestRouter(&fakePlayer{}, io.Discard)
	r.Handle(http.MethodGet, "/metrics", m.Handler())

	rec := do(t, r, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `hlsx_token_refresh_total{result="success"} 1`) {
		t.Errorf("metrics output missing refresh counter:\n%s", rec.Body.String())
	}
}

func TestNewHTTPServer(t *testing.T) {
	srv := NewHTTPServer("127.0.0.1:0", http.NotFoundHandler())
	if srv.Addr != "127.0.0.1:0" {
		t.Errorf("addr = %q", srv.Addr)
	}
	if srv.ReadHeaderTimeout == 0 || srv.WriteTimeout == 0 {
		t.Error("timeouts should be set")
	}
}
