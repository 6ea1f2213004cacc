// package models defines the data model for the streaming session manager
package models

import (
	"fmt"
	"strings"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	Key() string     // Key returns the primary key (the track ID for all current models)
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// StreamingToken is an opaque, short-lived credential bound to a track.
//
// Expiry is enforced server-side; the client learns about it only through playback failures.
type StreamingToken struct {
	TrackID      string
	Value        string
	IssuedAt     time.Time
	RefreshedAt  *time.Time
	RefreshCount int
}

// NewStreamingToken creates a freshly issued token for trackID.
func NewStreamingToken(trackID, value string) *StreamingToken {
	return &StreamingToken{TrackID: trackID, Value: value, IssuedAt: time.Now().UTC()}
}

// Refreshed returns a copy of t carrying the replacement value and an incremented refresh count.
func (t *StreamingToken) Refreshed(value string) *StreamingToken {
	now := time.Now().UTC()
	return &StreamingToken{
		TrackID:      t.TrackID,
		Value:        value,
		IssuedAt:     t.IssuedAt,
		RefreshedAt:  &now,
		RefreshCount: t.RefreshCount + 1,
	}
}

func (t *StreamingToken) Key() string { return t.TrackID }

func (t *StreamingToken) Validate() error {
	if strings.TrimSpace(t.TrackID) == "" {
		return fmt.Errorf("token track ID is required")
	}
	if t.Value == "" {
		return fmt.Errorf("token value is required")
	}
	return nil
}

// PlaybackPosition records how far into a track playback got.
type PlaybackPosition struct {
	TrackID   string
	Position  time.Duration
	Duration  time.Duration
	UpdatedAt time.Time
}

func (p *PlaybackPosition) Key() string { return p.TrackID }

func (p *PlaybackPosition) Validate() error {
	if strings.TrimSpace(p.TrackID) == "" {
		return fmt.Errorf("position track ID is required")
	}
	if p.Position < 0 {
		return fmt.Errorf("position must not be negative")
	}
	return nil
}

// Resumable reports whether playback should continue from Position rather than restart.
//
// Positions within tail of the end, or at zero, are not worth resuming.
func (p *PlaybackPosition) Resumable(tail time.Duration) bool {
	if p.Position <= 0 {
		return false
	}
	if p.Duration > 0 && p.Position >= p.Duration-tail {
		return false
	}
	return true
}

// PlaybackSession is the transient state of one track being played.
//
// It is created when a track is selected and replaced when the track changes.
type PlaybackSession struct {
	ID          string
	TrackID     string
	URL         string
	Position    time.Duration
	Duration    time.Duration
	Playing     bool
	Token       string
	LastRefresh time.Time
	StartedAt   time.Time
}
