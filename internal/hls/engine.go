package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/shared"
)

// ErrDestroyed is returned by operations on an engine after [Engine.Destroy].
var ErrDestroyed = errors.New("engine destroyed")

// Sink receives decoded stream data. [audio.ClockSink] is the production implementation.
type Sink interface {
	Append(data []byte, duration time.Duration) error
	Reset()
	SetDuration(d time.Duration)
	SetCurrentTime(t time.Duration)
	CurrentTime() time.Duration
	EndOfStream()
}

// FragmentStats describes one completed fragment download.
type FragmentStats struct {
	Level    int
	SeqID    uint64
	Bytes    int
	Duration time.Duration
	Elapsed  time.Duration
}

// Hooks are callbacks invoked from the loader goroutine. The engine holds no lock while calling them,
// so a hook may call back into the engine.
type Hooks struct {
	OnError       func(ErrorEvent)
	OnFragment    func(FragmentStats)
	OnLevelSwitch func(from, to int)
}

// EngineOpts contains configuration for an [Engine].
type EngineOpts struct {
	HTTPClient      *http.Client  // Transport (default: http.DefaultClient)
	Logger          *log.Logger   //
	Hooks           Hooks         //
	FragmentRetries int           // Non-fatal retries for transient fragment failures (default: 2, negative disables)
	RetryDelay      time.Duration // Pause between fragment retries (default: 250ms)
	MaxBufferAhead  time.Duration // Forward buffer cap; 0 disables the cap
	StartLevel      int           // Level used before any throughput sample
	BandwidthGuard  float64       // Fraction of estimated throughput a level may use (default: 0.8)
}

// Engine is an adaptive HLS loader bound to one [Sink].
type Engine struct {
	client  *http.Client
	sink    Sink
	logger  *log.Logger
	hooks   Hooks
	abr     *bandwidthEstimator
	retries int
	delay   time.Duration
	ahead   time.Duration
	guard   float64
	start   int

	mu        sync.Mutex
	src       string
	levels    []Level
	current   int
	cancel    context.CancelFunc
	gen       uint64
	destroyed bool
}

// NewEngine creates an [Engine] writing into sink.
func NewEngine(sink Sink, opts EngineOpts) *Engine {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.FragmentRetries < 0 {
		opts.FragmentRetries = 0
	} else if opts.FragmentRetries == 0 {
		opts.FragmentRetries = 2
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 250 * time.Millisecond
	}
	if opts.BandwidthGuard <= 0 || opts.BandwidthGuard > 1 {
		opts.BandwidthGuard = defaultBandwidthGuard
	}

	return &Engine{
		client:  opts.HTTPClient,
		sink:    sink,
		logger:  opts.Logger,
		hooks:   opts.Hooks,
		abr:     newBandwidthEstimator(defaultEWMAAlpha),
		retries: opts.FragmentRetries,
		delay:   opts.RetryDelay,
		ahead:   opts.MaxBufferAhead,
		guard:   opts.BandwidthGuard,
		start:   opts.StartLevel,
	}
}

// Load replaces the current source with src and returns once its manifest is parsed.
//
// Any running loader is stopped and the sink is reset. Failures are returned as [*ErrorEvent].
func (e *Engine) Load(ctx context.Context, src string) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	e.stopLocked()
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	e.sink.Reset()

	body, status, err := e.fetch(ctx, src)
	if err != nil || status >= 300 {
		return &ErrorEvent{Type: NetworkError, Details: ManifestLoadError, StatusCode: status, Fatal: true, URL: src, Err: err}
	}

	m, err := decodeManifest(src, body)
	if err != nil {
		return &ErrorEvent{Type: NetworkError, Details: ManifestParsingError, Fatal: true, URL: src, Err: err}
	}

	estimate, ok := e.abr.Estimate()
	level := selectLevel(m.levels, estimate, ok, e.guard, e.start)
	if !m.levels[level].loaded {
		if ev := e.loadLevel(ctx, &m.levels[level]); ev != nil {
			return ev
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.gen != gen {
		return ErrDestroyed
	}

	e.src = src
	e.levels = m.levels
	e.current = level
	if e.levels[level].closed {
		e.sink.SetDuration(totalDuration(e.levels[level].fragments))
	}

	e.logger.Debug("manifest parsed", "levels", len(m.levels), "level", level, "bandwidth", m.levels[level].Bandwidth)
	return nil
}

// StartLoad begins fragment loading from the fragment containing offset and moves the sink clock there.
func (e *Engine) StartLoad(offset time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return ErrDestroyed
	}
	if len(e.levels) == 0 {
		return fmt.Errorf("no source loaded")
	}

	e.stopLocked()
	e.gen++

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	idx := fragmentAt(e.levels[e.current].fragments, offset)
	e.sink.SetCurrentTime(offset)

	go e.loop(ctx, e.gen, idx)
	return nil
}

// Seek restarts loading at offset. It is equivalent to [Engine.StartLoad].
func (e *Engine) Seek(offset time.Duration) error {
	return e.StartLoad(offset)
}

// Destroy stops loading permanently. Events from an in-flight fragment are dropped.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	e.destroyed = true
	e.gen++
}

// Levels returns a copy of the available levels.
func (e *Engine) Levels() []Level {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Level, len(e.levels))
	copy(out, e.levels)
	return out
}

// CurrentLevel returns the index of the level being loaded.
func (e *Engine) CurrentLevel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Source returns the URL passed to the last successful [Engine.Load].
func (e *Engine) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

func (e *Engine) stopLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// live reports whether gen is still the active loader generation.
func (e *Engine) live(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.destroyed && e.gen == gen
}

// loop loads fragments sequentially from index idx, switching levels between fragments.
func (e *Engine) loop(ctx context.Context, gen uint64, idx int) {
	for {
		frag, level, ok := e.next(ctx, gen, idx)
		if !ok {
			return
		}

		if !e.waitForBuffer(ctx, frag.Start) {
			return
		}

		data, elapsed, ev := e.fetchFragment(ctx, gen, frag)
		if ev != nil {
			if e.live(gen) && ctx.Err() == nil {
				e.emit(*ev)
			}
			return
		}
		if !e.live(gen) {
			return
		}

		e.abr.Sample(len(data), elapsed.Seconds())
		if err := e.sink.Append(data, frag.Duration); err != nil {
			e.emit(ErrorEvent{Type: MediaError, Details: BufferAppendError, Fatal: true, URL: frag.URL, Err: err})
			return
		}
		if e.hooks.OnFragment != nil {
			e.hooks.OnFragment(FragmentStats{Level: level, SeqID: frag.SeqID, Bytes: len(data), Duration: frag.Duration, Elapsed: elapsed})
		}

		idx = e.indexAfter(level, frag)
		if idx < 0 {
			e.finish(gen)
			return
		}
	}
}

// next picks the level for the upcoming fragment and returns the fragment at idx on it.
func (e *Engine) next(ctx context.Context, gen uint64, idx int) (Fragment, int, bool) {
	e.mu.Lock()
	if e.destroyed || e.gen != gen {
		e.mu.Unlock()
		return Fragment{}, 0, false
	}
	from := e.current
	if idx >= len(e.levels[from].fragments) {
		e.mu.Unlock()
		return Fragment{}, 0, false
	}
	estimate, ok := e.abr.Estimate()
	to := selectLevel(e.levels, estimate, ok, e.guard, from)
	pos := e.levels[from].fragments[idx].Start
	target := e.levels[to]
	e.mu.Unlock()

	if to != from {
		if !target.loaded {
			if ev := e.loadLevel(ctx, &target); ev != nil {
				e.logger.Warn("level switch failed, staying on current level", "from", from, "to", to, "error", ev)
				to = from
			}
		}

		e.mu.Lock()
		if e.destroyed || e.gen != gen {
			e.mu.Unlock()
			return Fragment{}, 0, false
		}
		if to != from {
			e.levels[to] = target
			e.current = to
			idx = fragmentAt(target.fragments, pos)
		}
		e.mu.Unlock()

		if to != from {
			e.logger.Debug("level switched", "from", from, "to", to, "estimate_bps", int(estimate))
			if e.hooks.OnLevelSwitch != nil {
				e.hooks.OnLevelSwitch(from, to)
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.gen != gen {
		return Fragment{}, 0, false
	}
	fragments := e.levels[e.current].fragments
	if idx >= len(fragments) {
		return Fragment{}, 0, false
	}
	return fragments[idx], e.current, true
}

// indexAfter returns the index following frag on level, or -1 at the end of the playlist.
func (e *Engine) indexAfter(level int, frag Fragment) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	fragments := e.levels[level].fragments
	for i, f := range fragments {
		if f.Start == frag.Start && f.SeqID == frag.SeqID {
			if i+1 < len(fragments) {
				return i + 1
			}
			return -1
		}
	}
	return -1
}

func (e *Engine) finish(gen uint64) {
	e.mu.Lock()
	closed := len(e.levels) > 0 && e.levels[e.current].closed
	current := !e.destroyed && e.gen == gen
	e.mu.Unlock()

	if current && closed {
		e.sink.EndOfStream()
	}
}

// waitForBuffer blocks while more than MaxBufferAhead is buffered beyond the playhead.
func (e *Engine) waitForBuffer(ctx context.Context, fragStart time.Duration) bool {
	if e.ahead <= 0 {
		return ctx.Err() == nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for fragStart-e.sink.CurrentTime() > e.ahead {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return ctx.Err() == nil
}

// fetchFragment downloads frag, retrying transport failures and 5xx responses as non-fatal errors.
func (e *Engine) fetchFragment(ctx context.Context, gen uint64, frag Fragment) ([]byte, time.Duration, *ErrorEvent) {
	var last *ErrorEvent

	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, 0, &ErrorEvent{Type: NetworkError, Details: FragLoadError, Fatal: true, URL: frag.URL, Err: ctx.Err()}
			case <-time.After(e.delay):
			}
		}

		began := time.Now()
		data, status, err := e.fetch(ctx, frag.URL)
		elapsed := time.Since(began)

		if err == nil && status < 300 {
			return data, elapsed, nil
		}

		last = &ErrorEvent{Type: NetworkError, Details: FragLoadError, StatusCode: status, URL: frag.URL, Err: err}
		if ctx.Err() != nil || (status >= 400 && status < 500) {
			break
		}
		if attempt < e.retries && e.live(gen) {
			e.logger.Warn("fragment load failed, retrying", "seq", frag.SeqID, "status", status, "attempt", attempt+1, "error", err)
			e.emit(*last)
		}
	}

	last.Fatal = true
	return nil, 0, last
}

// loadLevel fetches and decodes the media playlist of l in place.
func (e *Engine) loadLevel(ctx context.Context, l *Level) *ErrorEvent {
	body, status, err := e.fetch(ctx, l.URL)
	if err != nil || status >= 300 {
		return &ErrorEvent{Type: NetworkError, Details: LevelLoadError, StatusCode: status, Fatal: true, URL: l.URL, Err: err}
	}

	fragments, closed, err := decodeLevel(l.URL, body)
	if err != nil {
		return &ErrorEvent{Type: NetworkError, Details: ManifestParsingError, Fatal: true, URL: l.URL, Err: err}
	}

	l.fragments = fragments
	l.closed = closed
	l.loaded = true
	return nil
}

func (e *Engine) emit(ev ErrorEvent) {
	if e.hooks.OnError != nil {
		e.hooks.OnError(ev)
	}
}

// fetch performs a GET and returns the body with its status code. A non-nil error means no usable response.
func (e *Engine) fetch(ctx context.Context, src string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
