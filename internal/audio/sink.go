package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrClosed is returned by a [ClockSink] after [ClockSink.Close].
var ErrClosed = errors.New("sink closed")

// DefaultTickInterval is the timeupdate cadence used by [ClockSink.Run].
const DefaultTickInterval = 250 * time.Millisecond

// EventKind names a sink lifecycle event.
type EventKind string

const (
	TimeUpdate     EventKind = "timeupdate"
	DurationChange EventKind = "durationchange"
	Ended          EventKind = "ended"
	Error          EventKind = "error"
	LoadStart      EventKind = "loadstart"
	CanPlay        EventKind = "canplay"
)

// Event is delivered to subscribers. Time is the playback position when the event fired.
type Event struct {
	Kind EventKind
	Time time.Duration
	Err  error
}

// ClockSink writes media data to an [io.Writer] and tracks a playback clock.
type ClockSink struct {
	w   io.Writer
	now func() time.Time

	mu        sync.Mutex
	anchor    time.Duration
	anchorAt  time.Time
	playing   bool
	buffered  time.Duration
	duration  time.Duration
	volume    float64
	eos       bool
	ended     bool
	canPlay   bool
	closed    bool
	listeners map[int]func(Event)
	nextID    int
}

// NewClockSink creates a paused sink writing to w (default: [io.Discard]) at full volume.
func NewClockSink(w io.Writer) *ClockSink {
	if w == nil {
		w = io.Discard
	}
	return &ClockSink{
		w:         w,
		now:       time.Now,
		volume:    1,
		listeners: make(map[int]func(Event)),
	}
}

// WithClock replaces the wall clock, for tests.
func (s *ClockSink) WithClock(now func() time.Time) *ClockSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.anchorAt = now()
	return s
}

// Subscribe registers fn for all events and returns a function removing it.
func (s *ClockSink) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// CurrentTime returns the playback position.
func (s *ClockSink) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

// SetCurrentTime moves the playhead to t and discards the forward buffer.
func (s *ClockSink) SetCurrentTime(t time.Duration) {
	if t < 0 {
		t = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duration > 0 && t > s.duration {
		t = s.duration
	}
	s.anchor = t
	s.anchorAt = s.now()
	s.buffered = t
	s.ended = false
}

// Duration returns the stream duration, or 0 when unknown.
func (s *ClockSink) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// SetDuration records the stream duration and fires durationchange when it differs.
func (s *ClockSink) SetDuration(d time.Duration) {
	s.mu.Lock()
	if d == s.duration {
		s.mu.Unlock()
		return
	}
	s.duration = d
	ev := Event{Kind: DurationChange, Time: s.positionLocked()}
	s.mu.Unlock()

	s.dispatch(ev)
}

// Buffered returns the end of the buffered range on the timeline.
func (s *ClockSink) Buffered() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffered
}

// Volume returns the output volume in [0, 1].
func (s *ClockSink) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume sets the output volume, clamped to [0, 1].
func (s *ClockSink) SetVolume(v float64) {
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

// Play starts the clock.
func (s *ClockSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.playing {
		return nil
	}
	if s.ended {
		s.anchor = 0
		s.buffered = 0
		s.ended = false
	}
	s.anchorAt = s.now()
	s.playing = true
	return nil
}

// Pause freezes the clock at the current position.
func (s *ClockSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return
	}
	s.anchor = s.positionLocked()
	s.anchorAt = s.now()
	s.playing = false
}

// Paused reports whether the clock is stopped.
func (s *ClockSink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.playing
}

// Append writes data and extends the buffered range by duration. The first append after a reset fires canplay.
func (s *ClockSink) Append(data []byte, duration time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	if _, err := s.w.Write(data); err != nil {
		pos := s.positionLocked()
		s.mu.Unlock()
		err = fmt.Errorf("failed to write media data: %w", err)
		s.dispatch(Event{Kind: Error, Time: pos, Err: err})
		return err
	}

	// Re-anchor so a stalled clock resumes from where it stopped
	pos := s.positionLocked()
	s.anchor = pos
	s.anchorAt = s.now()
	s.buffered += duration

	var events []Event
	if !s.canPlay {
		s.canPlay = true
		events = append(events, Event{Kind: CanPlay, Time: pos})
	}
	s.mu.Unlock()

	s.dispatch(events...)
	return nil
}

// Reset clears position, buffer and duration for a new source and fires loadstart.
func (s *ClockSink) Reset() {
	s.mu.Lock()
	s.anchor = 0
	s.anchorAt = s.now()
	s.buffered = 0
	s.duration = 0
	s.eos = false
	s.ended = false
	s.canPlay = false
	s.mu.Unlock()

	s.dispatch(Event{Kind: LoadStart})
}

// EndOfStream marks that no more data will be appended for the current source.
func (s *ClockSink) EndOfStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eos = true
}

// Tick fires timeupdate while playing, and ended once the playhead reaches the end of a finished stream.
func (s *ClockSink) Tick() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}

	pos := s.positionLocked()
	events := []Event{{Kind: TimeUpdate, Time: pos}}

	end := s.buffered
	if s.duration > 0 && s.duration < end {
		end = s.duration
	}
	if s.eos && !s.ended && pos >= end {
		s.ended = true
		s.playing = false
		s.anchor = pos
		events = append(events, Event{Kind: Ended, Time: pos})
	}
	s.mu.Unlock()

	s.dispatch(events...)
}

// Run calls [ClockSink.Tick] every interval until ctx is done.
func (s *ClockSink) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Close stops the clock and rejects further appends. If the writer is an [io.Closer] it is closed.
func (s *ClockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.playing = false
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// positionLocked computes the playhead, clamping to the buffered end and duration.
// A clamped clock is re-anchored so time spent stalled is not counted later.
func (s *ClockSink) positionLocked() time.Duration {
	if !s.playing {
		return s.anchor
	}

	now := s.now()
	pos := s.anchor + now.Sub(s.anchorAt)

	limit := s.buffered
	if s.duration > 0 && s.duration < limit {
		limit = s.duration
	}
	if pos > limit {
		pos = limit
		if pos < s.anchor {
			pos = s.anchor
		}
		s.anchor = pos
		s.anchorAt = now
	}
	return pos
}

func (s *ClockSink) dispatch(events ...Event) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	listeners := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}
