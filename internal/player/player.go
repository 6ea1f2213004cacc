// package player implements the streaming session manager.
//
// A [Manager] owns one playback session at a time: it signs a URL for the selected track, loads it
// into an HLS engine bound to the audio sink, and recovers from token expiry mid-stream by
// refreshing the token and reloading the source at the captured offset.
package player

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/audio"
	"github.com/desertthunder/hlsx/internal/hls"
	"github.com/desertthunder/hlsx/internal/models"
)

// Sink is the output the manager plays into. [audio.ClockSink] implements it.
type Sink interface {
	hls.Sink
	Duration() time.Duration
	Volume() float64
	SetVolume(v float64)
	Play() error
	Pause()
	Paused() bool
	Subscribe(fn func(audio.Event)) func()
}

// Engine is the subset of [hls.Engine] the manager drives.
type Engine interface {
	Load(ctx context.Context, src string) error
	StartLoad(offset time.Duration) error
	Seek(offset time.Duration) error
	Destroy()
}

// EngineFactory builds an engine bound to sink reporting through hooks.
type EngineFactory func(sink hls.Sink, hooks hls.Hooks) Engine

// HLSEngine returns an [EngineFactory] creating [hls.Engine] instances.
func HLSEngine(client *http.Client, logger *log.Logger, bufferAhead time.Duration) EngineFactory {
	return func(sink hls.Sink, hooks hls.Hooks) Engine {
		return hls.NewEngine(sink, hls.EngineOpts{
			HTTPClient:     client,
			Logger:         logger,
			Hooks:          hooks,
			MaxBufferAhead: bufferAhead,
		})
	}
}

// PositionStore persists how far into each track playback got.
//
// Load returns [shared.ErrPositionMissing] when nothing is saved for the track.
type PositionStore interface {
	Save(position models.PlaybackPosition) error
	Load(trackID string) (*models.PlaybackPosition, error)
}

// State is the outer playback state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Snapshot is a point-in-time view of the manager for display.
type Snapshot struct {
	SessionID string
	TrackID   string
	State     State
	Refresh   RefreshState
	Loading   bool
	Playing   bool
	Position  time.Duration
	Duration  time.Duration
	Volume    int
	Muted     bool
	Error     string
	Queue     []string
}
