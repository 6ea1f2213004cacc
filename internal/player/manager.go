package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/audio"
	"github.com/desertthunder/hlsx/internal/hls"
	"github.com/desertthunder/hlsx/internal/metrics"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/services"
	"github.com/desertthunder/hlsx/internal/shared"
)

const (
	defaultRefreshCooldown = 5 * time.Second
	positionSaveInterval   = 5 * time.Second // throttle for saves driven by timeupdate
	resumeTail             = 5 * time.Second // saved positions this close to the end restart the track
)

// ErrClosed is returned by [Manager.LoadTrack] after [Manager.Close].
var ErrClosed = errors.New("player closed")

// errSuperseded aborts work started for a session that has since been replaced.
var errSuperseded = errors.New("session superseded")

// ManagerOpts contains configuration for a [Manager].
type ManagerOpts struct {
	Signer          services.Signer  // Required
	Sink            Sink             // Required
	NewEngine       EngineFactory    // (default: [HLSEngine] over http.DefaultClient)
	Positions       PositionStore    // Positions are neither saved nor restored when nil
	Metrics         *metrics.Metrics //
	Logger          *log.Logger      //
	RefreshCooldown time.Duration    // Minimum time between refresh attempts (default: 5s)
	Volume          int              // Initial volume, 0-100
	Muted           bool             //
	Autoplay        bool             // Initial play intent
	Now             func() time.Time // (default: time.Now)
	AfterFunc       AfterFunc        // (default: [time.AfterFunc])
}

// AfterFunc runs fn once d has elapsed and returns a function cancelling it.
type AfterFunc func(d time.Duration, fn func()) (stop func() bool)

func realAfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Manager is the streaming session manager. All methods are safe for concurrent use.
//
// Engine and sink callbacks run on their own goroutines and take the manager lock, so the lock is
// never held across network calls or sink methods that dispatch events.
type Manager struct {
	signer    services.Signer
	sink      Sink
	newEngine EngineFactory
	positions PositionStore
	metrics   *metrics.Metrics
	logger    *log.Logger
	cooldown  time.Duration
	now       func() time.Time
	afterFunc AfterFunc

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	mu          sync.Mutex
	state       State
	session     *models.PlaybackSession
	gen         uint64
	engine      Engine
	guard       *refreshGuard
	intent      bool
	loading     bool
	err         error
	volume      int
	muted       bool
	queue       []string
	seekPending bool
	seekTarget  time.Duration
	lastSave    time.Time
	closed      bool

	// stalled is a fatal authorization error suppressed by the guard. It is handled again once the
	// cooldown ends, since the loader that reported it has stopped.
	stalled     *hls.ErrorEvent
	stopRecheck func() bool
}

// NewManager creates a [Manager] and subscribes it to the sink.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.Signer == nil {
		return nil, fmt.Errorf("%w: signer is required", shared.ErrMissingArgument)
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("%w: sink is required", shared.ErrMissingArgument)
	}
	if opts.Volume < 0 || opts.Volume > 100 {
		return nil, fmt.Errorf("%w: volume must be between 0 and 100, got %d", shared.ErrInvalidArgument, opts.Volume)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.NewEngine == nil {
		opts.NewEngine = HLSEngine(http.DefaultClient, opts.Logger, 0)
	}
	if opts.RefreshCooldown <= 0 {
		opts.RefreshCooldown = defaultRefreshCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		signer:    opts.Signer,
		sink:      opts.Sink,
		newEngine: opts.NewEngine,
		positions: opts.Positions,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		cooldown:  opts.RefreshCooldown,
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
		guard:     newRefreshGuard(opts.RefreshCooldown),
		intent:    opts.Autoplay,
		volume:    opts.Volume,
		muted:     opts.Muted,
	}

	m.applyVolumeLocked()
	m.unsubscribe = opts.Sink.Subscribe(m.onSinkEvent)
	return m, nil
}

// LoadTrack replaces the current session with a new one for trackID.
//
// The previous engine is destroyed and the new session starts with fresh refresh state. Once the
// manifest is parsed playback resumes from any saved position and starts if the play intent is set.
// Failures are returned and also recorded as the session error.
func (m *Manager) LoadTrack(ctx context.Context, trackID string) error {
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return fmt.Errorf("%w: track ID is required", shared.ErrInvalidInput)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	prev, saved := m.detachLocked()
	m.gen++
	gen := m.gen
	m.guard = newRefreshGuard(m.cooldown)
	m.clearRecheckLocked()
	m.session = &models.PlaybackSession{
		ID:        shared.GenerateID(),
		TrackID:   trackID,
		Playing:   m.intent,
		StartedAt: m.now(),
	}
	m.state = StateLoading
	m.loading = true
	m.err = nil
	m.seekPending = false
	m.lastSave = time.Time{}
	engine := m.newEngine(m.sink, m.hooks(gen))
	m.engine = engine
	logger := shared.WithLogger(m.logger, "track", trackID, "session", m.session.ID)
	m.mu.Unlock()

	m.finalize(prev, saved)
	m.sink.Pause()
	logger.Info("loading track")

	src, err := m.signer.SignedURLWithRetry(ctx, trackID)
	if err != nil {
		m.failLoad(gen, err)
		return err
	}
	m.setSource(gen, src)

	if err := engine.Load(ctx, src); err != nil {
		var ev *hls.ErrorEvent
		if errors.As(err, &ev) {
			m.handle(ctx, gen, *ev)
			return m.sessionErr(gen)
		}
		m.failLoad(gen, err)
		return err
	}

	if err := m.start(gen, engine, m.resumeOffset(trackID), m.playIntent()); err != nil {
		if !errors.Is(err, errSuperseded) {
			m.failLoad(gen, err)
		}
		return err
	}

	logger.Info("track ready")
	return nil
}

// HandleStreamError reacts to an engine error for the current session.
//
// Authorization failures trigger at most one refresh sequence per cooldown window. Other fatal errors
// are recorded as the session error by category. Non-fatal errors are logged and ignored.
func (m *Manager) HandleStreamError(ctx context.Context, ev hls.ErrorEvent) {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	m.handle(ctx, gen, ev)
}

// IsAuthorizationError reports whether ev should be answered with a token refresh: an HTTP 4xx, or
// any fatal failure to load a manifest, level playlist or fragment.
//
// A fragment that stays unreachable after its 5xx retries is a load failure too, so a prolonged
// backend outage ends in session expiry rather than a network error.
func IsAuthorizationError(ev hls.ErrorEvent) bool {
	if ev.StatusCode >= 400 && ev.StatusCode < 500 {
		return true
	}
	return ev.Fatal && ev.IsLoadFailure()
}

// Categorize maps a fatal non-authorization error to its playback error sentinel.
func Categorize(ev hls.ErrorEvent) error {
	switch ev.Type {
	case hls.NetworkError:
		return shared.ErrNetworkPlayback
	case hls.MediaError:
		return shared.ErrMediaPlayback
	default:
		return shared.ErrUnknownPlayback
	}
}

func categoryLabel(err error) string {
	switch {
	case errors.Is(err, shared.ErrNetworkPlayback):
		return "network"
	case errors.Is(err, shared.ErrMediaPlayback):
		return "media"
	case errors.Is(err, shared.ErrSessionExpired):
		return "session_expired"
	default:
		return "unknown"
	}
}

func (m *Manager) handle(ctx context.Context, gen uint64, ev hls.ErrorEvent) {
	switch {
	case IsAuthorizationError(ev):
		m.recover(ctx, gen, ev)
	case ev.Fatal:
		m.fail(gen, Categorize(ev), &ev)
	default:
		m.logger.Debug("transient stream error", "error", &ev)
	}
}

// recover runs the refresh sequence: capture offset and intent, refresh the cached token, reload,
// seek back and resume. A failed targeted refresh falls back to a single forced re-sign; when that
// fails too the session expires.
func (m *Manager) recover(ctx context.Context, gen uint64, ev hls.ErrorEvent) {
	m.mu.Lock()
	if gen != m.gen || m.session == nil || m.engine == nil {
		m.mu.Unlock()
		return
	}
	if reason, ok := m.guard.begin(m.now()); !ok {
		if ev.Fatal && reason != reasonExpired {
			m.stalled = &ev
			if reason == reasonCooldown {
				m.scheduleRecheckLocked(gen)
			}
		}
		m.mu.Unlock()
		m.metrics.RecordSuppressed(reason)
		m.logger.Debug("authorization error suppressed", "reason", reason, "error", &ev)
		return
	}
	m.clearRecheckLocked()
	trackID := m.session.TrackID
	offset := m.sink.CurrentTime()
	playing := m.intent
	m.session.Position = offset
	m.session.Duration = m.sink.Duration()
	logger := shared.WithLogger(m.logger, "track", trackID, "session", m.session.ID)
	m.mu.Unlock()

	logger.Warn("stream authorization expired, refreshing token", "offset", offset, "playing", playing, "error", &ev)

	src, err := m.refreshedURL(ctx, trackID)
	if err == nil {
		err = m.reload(ctx, gen, src, offset, playing)
	}
	if errors.Is(err, errSuperseded) {
		return
	}

	if err != nil {
		logger.Warn("token refresh failed, forcing a new signature", "error", err)

		src, err = m.signer.ForceRefreshURL(ctx, trackID)
		if err == nil {
			err = m.reload(ctx, gen, src, offset, playing)
		}
		if errors.Is(err, errSuperseded) {
			return
		}
		if err != nil {
			m.metrics.RecordForceRefresh("failure")
			m.expire(gen, offset, fmt.Errorf("%w: %w", shared.ErrAuthorizationExpired, err))
			return
		}
		m.metrics.RecordForceRefresh("success")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.guard.succeed()
	m.session.URL = src
	m.session.Token = tokenOf(src)
	m.session.LastRefresh = m.now()
	if m.stalled != nil {
		m.scheduleRecheckLocked(gen)
	}
	logger.Info("stream authorization restored", "offset", offset)
}

// scheduleRecheckLocked arranges for the stalled error to be handled when the cooldown ends.
func (m *Manager) scheduleRecheckLocked(gen uint64) {
	if m.stopRecheck != nil {
		return
	}
	now := m.now()
	d := m.guard.current(now).Until.Sub(now)
	if d < 0 {
		d = 0
	}
	m.stopRecheck = m.afterFunc(d, func() { m.recheck(gen) })
}

func (m *Manager) clearRecheckLocked() {
	if m.stopRecheck != nil {
		m.stopRecheck()
		m.stopRecheck = nil
	}
	m.stalled = nil
}

func (m *Manager) recheck(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	ev := m.stalled
	m.stalled = nil
	m.stopRecheck = nil
	m.mu.Unlock()

	if ev == nil {
		return
	}
	m.logger.Warn("stream still failing after refresh", "error", ev)
	m.handle(m.ctx, gen, *ev)
}

// refreshedURL exchanges the cached token for trackID and builds the new playback URL.
func (m *Manager) refreshedURL(ctx context.Context, trackID string) (string, error) {
	old, err := m.signer.CachedToken(ctx, trackID)
	if err != nil {
		m.metrics.RecordTokenRefresh("failure")
		return "", err
	}
	if old == "" {
		m.metrics.RecordTokenRefresh("no_token")
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNoRefreshToken)
	}

	token, err := m.signer.RefreshToken(ctx, trackID, old)
	if err != nil {
		m.metrics.RecordTokenRefresh("failure")
		return "", err
	}

	m.metrics.RecordTokenRefresh("success")
	return m.signer.StreamingURL(trackID, token), nil
}

// reload points the session engine at src and, once the manifest is parsed, restarts at offset.
func (m *Manager) reload(ctx context.Context, gen uint64, src string, offset time.Duration, play bool) error {
	m.mu.Lock()
	if gen != m.gen || m.engine == nil {
		m.mu.Unlock()
		return errSuperseded
	}
	engine := m.engine
	m.mu.Unlock()

	if err := engine.Load(ctx, src); err != nil {
		if errors.Is(err, hls.ErrDestroyed) {
			return errSuperseded
		}
		return err
	}
	return m.start(gen, engine, offset, play)
}

// start begins fragment loading at offset and applies play.
func (m *Manager) start(gen uint64, engine Engine, offset time.Duration, play bool) error {
	if err := engine.StartLoad(offset); err != nil {
		if errors.Is(err, hls.ErrDestroyed) {
			return errSuperseded
		}
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return errSuperseded
	}

	if play {
		if err := m.sink.Play(); err != nil {
			return fmt.Errorf("failed to start playback: %w", err)
		}
		m.state = StatePlaying
	} else {
		m.sink.Pause()
		if m.state == StateLoading {
			m.state = StateReady
		}
	}
	m.loading = false
	m.session.Position = offset
	m.session.Playing = play
	return nil
}

// expire ends the session. The reloads that failed reset the sink, so the playhead is put back at offset.
func (m *Manager) expire(gen uint64, offset time.Duration, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}

	m.guard.expire()
	m.clearRecheckLocked()
	m.sink.SetCurrentTime(offset)
	m.session.Position = offset
	m.err = shared.ErrSessionExpired
	m.loading = false
	switch m.state {
	case StateLoading:
		m.state = StateIdle
	case StatePlaying:
		m.state = StatePaused
	}
	m.sink.Pause()

	m.metrics.RecordPlaybackError(categoryLabel(shared.ErrSessionExpired))
	m.logger.Error("session expired", "track", m.session.TrackID, "error", cause)
}

func (m *Manager) fail(gen uint64, category error, ev *hls.ErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}

	m.err = category
	m.loading = false
	if m.state == StateLoading {
		m.state = StateIdle
	}

	label := categoryLabel(category)
	m.metrics.RecordPlaybackError(label)
	m.logger.Error("fatal stream error", "category", label, "error", ev)
}

func (m *Manager) failLoad(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}

	m.err = err
	m.loading = false
	m.state = StateIdle

	m.metrics.RecordPlaybackError("load")
	m.logger.Error("failed to load track", "track", m.session.TrackID, "error", err)
}

// RequestSeek records a seek to offsetMillis to be applied by [Manager.ApplySeek].
func (m *Manager) RequestSeek(offsetMillis int64) {
	if offsetMillis < 0 {
		offsetMillis = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekPending = true
	m.seekTarget = time.Duration(offsetMillis) * time.Millisecond
}

// ApplySeek moves the engine to the requested offset and clears the request.
// It does nothing when no seek has been requested.
func (m *Manager) ApplySeek() error {
	m.mu.Lock()
	if !m.seekPending {
		m.mu.Unlock()
		return nil
	}
	m.seekPending = false
	target := m.seekTarget
	engine := m.engine
	if m.session != nil {
		m.session.Position = target
	}
	m.mu.Unlock()

	if engine == nil {
		return shared.ErrNoSession
	}
	if err := engine.Seek(target); err != nil {
		return fmt.Errorf("seek failed: %w", err)
	}
	return nil
}

// Seek requests and applies a seek to offsetMillis.
func (m *Manager) Seek(offsetMillis int64) error {
	m.RequestSeek(offsetMillis)
	return m.ApplySeek()
}

// SeekBy seeks relative to the current position, clamped to the start of the track.
func (m *Manager) SeekBy(delta time.Duration) error {
	target := m.sink.CurrentTime() + delta
	if d := m.sink.Duration(); d > 0 && target > d {
		target = d
	}
	return m.Seek(target.Milliseconds())
}

// SetVolume stores level and mirrors it onto the sink unless muted.
func (m *Manager) SetVolume(level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("%w: volume must be between 0 and 100, got %d", shared.ErrInvalidArgument, level)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = level
	m.applyVolumeLocked()
	return nil
}

// SetMuted silences the sink, or restores the stored volume when muted is false.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	m.applyVolumeLocked()
}

func (m *Manager) applyVolumeLocked() {
	if m.muted {
		m.sink.SetVolume(0)
		return
	}
	m.sink.SetVolume(float64(m.volume) / 100)
}

// Play sets the play intent and starts the sink when a track is ready.
// While a track is loading the intent is applied once its manifest is parsed.
func (m *Manager) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.intent = true
	if m.session == nil {
		return shared.ErrNoSession
	}
	m.session.Playing = true

	switch {
	case m.loading:
		return nil
	case m.state == StateIdle:
		return fmt.Errorf("%w: track failed to load", shared.ErrNoSession)
	case m.guard.current(m.now()).Phase == RefreshExpired:
		return shared.ErrSessionExpired
	}

	if err := m.sink.Play(); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	m.state = StatePlaying
	return nil
}

// Pause clears the play intent, stops the sink and saves the position.
func (m *Manager) Pause() {
	m.mu.Lock()
	m.intent = false
	var saved *models.PlaybackPosition
	if m.session != nil {
		m.session.Playing = false
		if m.state == StatePlaying {
			m.state = StatePaused
		}
		m.sink.Pause()
		saved = m.positionLocked()
	}
	m.mu.Unlock()

	if saved != nil {
		m.savePosition(*saved)
	}
}

// Toggle flips the play intent.
func (m *Manager) Toggle() error {
	m.mu.Lock()
	playing := m.intent
	m.mu.Unlock()

	if playing {
		m.Pause()
		return nil
	}
	return m.Play()
}

// Enqueue appends tracks to the play queue.
func (m *Manager) Enqueue(trackIDs ...string) error {
	ids := make([]string, 0, len(trackIDs))
	for _, id := range trackIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("%w: track ID is required", shared.ErrInvalidInput)
		}
		ids = append(ids, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, ids...)
	return nil
}

// Next loads the first queued track, or returns [shared.ErrQueueEmpty].
func (m *Manager) Next(ctx context.Context) error {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return shared.ErrQueueEmpty
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.mu.Unlock()

	return m.LoadTrack(ctx, next)
}

// OnTrackEnded advances to the next queued track, or pauses when the queue is empty.
func (m *Manager) OnTrackEnded(ctx context.Context) error {
	m.mu.Lock()
	saved := m.positionLocked()
	more := len(m.queue) > 0
	if !more {
		m.intent = false
		if m.session != nil {
			m.session.Playing = false
		}
		if m.state == StatePlaying {
			m.state = StatePaused
		}
		m.sink.Pause()
	}
	m.mu.Unlock()

	if saved != nil {
		m.savePosition(*saved)
	}
	if !more {
		return nil
	}
	return m.Next(ctx)
}

// Snapshot returns the current state for display.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		State:   m.state,
		Refresh: m.guard.current(m.now()),
		Loading: m.loading,
		Playing: m.intent,
		Volume:  m.volume,
		Muted:   m.muted,
		Queue:   append([]string(nil), m.queue...),
	}
	if m.err != nil {
		s.Error = m.err.Error()
	}
	if m.session != nil {
		s.SessionID = m.session.ID
		s.TrackID = m.session.TrackID
		s.Position, s.Duration = m.playheadLocked()
	}
	return s
}

// Close destroys the engine, saves the position and detaches from the sink.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	prev, saved := m.detachLocked()
	m.gen++
	m.clearRecheckLocked()
	m.mu.Unlock()

	m.cancel()
	m.unsubscribe()
	m.finalize(prev, saved)
	m.sink.Pause()
	return nil
}

func (m *Manager) hooks(gen uint64) hls.Hooks {
	return hls.Hooks{
		OnError: func(ev hls.ErrorEvent) {
			m.handle(m.ctx, gen, ev)
		},
		OnFragment: func(stats hls.FragmentStats) {
			m.metrics.RecordFragment(stats.Bytes)
		},
		OnLevelSwitch: func(from, to int) {
			m.metrics.RecordLevelSwitch()
		},
	}
}

func (m *Manager) onSinkEvent(ev audio.Event) {
	switch ev.Kind {
	case audio.TimeUpdate:
		m.onTimeUpdate(ev.Time)
	case audio.Ended:
		if err := m.OnTrackEnded(m.ctx); err != nil {
			m.logger.Warn("failed to advance after track ended", "error", err)
		}
	case audio.Error:
		m.logger.Warn("sink error", "error", ev.Err)
	default:
		m.logger.Debug("sink event", "kind", ev.Kind, "time", ev.Time)
	}
}

func (m *Manager) onTimeUpdate(t time.Duration) {
	m.mu.Lock()
	if m.session == nil || m.loading || m.holdingPlayhead() {
		m.mu.Unlock()
		return
	}
	m.session.Position = t

	now := m.now()
	if m.positions == nil || now.Sub(m.lastSave) < positionSaveInterval {
		m.mu.Unlock()
		return
	}
	m.lastSave = now
	p := models.PlaybackPosition{TrackID: m.session.TrackID, Position: t, Duration: m.sink.Duration(), UpdatedAt: now}
	m.mu.Unlock()

	m.savePosition(p)
}

func (m *Manager) playIntent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intent
}

func (m *Manager) setSource(gen uint64, src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.session.URL = src
	m.session.Token = tokenOf(src)
}

func (m *Manager) sessionErr(gen uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return errSuperseded
	}
	return m.err
}

// positionLocked returns the position to persist for the current session, or nil when nothing has loaded.
func (m *Manager) positionLocked() *models.PlaybackPosition {
	if m.session == nil || m.engine == nil || m.loading || m.state == StateIdle {
		return nil
	}
	pos, dur := m.playheadLocked()
	return &models.PlaybackPosition{
		TrackID:   m.session.TrackID,
		Position:  pos,
		Duration:  dur,
		UpdatedAt: m.now(),
	}
}

// holdingPlayhead reports whether the sink no longer reflects the session position: a refresh
// reload resets it, and an expired session keeps the offset captured before the refresh.
func (m *Manager) holdingPlayhead() bool {
	switch m.guard.current(m.now()).Phase {
	case RefreshInFlight, RefreshExpired:
		return true
	}
	return false
}

func (m *Manager) playheadLocked() (time.Duration, time.Duration) {
	if m.holdingPlayhead() {
		return m.session.Position, m.session.Duration
	}
	return m.sink.CurrentTime(), m.sink.Duration()
}

// detachLocked removes the session engine and captures its position for [Manager.finalize].
func (m *Manager) detachLocked() (Engine, *models.PlaybackPosition) {
	saved := m.positionLocked()
	prev := m.engine
	m.engine = nil
	return prev, saved
}

func (m *Manager) finalize(prev Engine, saved *models.PlaybackPosition) {
	if prev != nil {
		prev.Destroy()
	}
	if saved != nil {
		m.savePosition(*saved)
	}
}

func (m *Manager) savePosition(p models.PlaybackPosition) {
	if m.positions == nil {
		return
	}
	if err := m.positions.Save(p); err != nil {
		m.logger.Warn("failed to save playback position", "track", p.TrackID, "error", err)
	}
}

func (m *Manager) resumeOffset(trackID string) time.Duration {
	if m.positions == nil {
		return 0
	}

	p, err := m.positions.Load(trackID)
	if err != nil {
		if !errors.Is(err, shared.ErrPositionMissing) {
			m.logger.Warn("failed to load playback position", "track", trackID, "error", err)
		}
		return 0
	}
	if !p.Resumable(resumeTail) {
		return 0
	}

	m.logger.Info("resuming track", "track", trackID, "position", p.Position)
	return p.Position
}

// tokenOf extracts the token query parameter from a signed URL.
func tokenOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("token")
}
