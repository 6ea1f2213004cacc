package models

import (
	"testing"
	"time"
)

func TestStreamingToken(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		if err := NewStreamingToken("trk_1", "tok").Validate(); err != nil {
			t.Errorf("expected valid token, got %v", err)
		}
		if err := NewStreamingToken(" ", "tok").Validate(); err == nil {
			t.Error("expected error for blank track ID")
		}
		if err := NewStreamingToken("trk_1", "").Validate(); err == nil {
			t.Error("expected error for empty value")
		}
	})

	t.Run("Refreshed", func(t *testing.T) {
		original := NewStreamingToken("trk_1", "old")
		next := original.Refreshed("new")

		if next.Value != "new" {
			t.Errorf("expected new value, got %s", next.Value)
		}
		if next.RefreshCount != 1 {
			t.Errorf("expected refresh count 1, got %d", next.RefreshCount)
		}
		if next.RefreshedAt == nil {
			t.Error("expected RefreshedAt to be set")
		}
		if original.Value != "old" {
			t.Error("expected original token to be unchanged")
		}
	})
}

func TestPlaybackPosition(t *testing.T) {
	t.Run("Resumable", func(t *testing.T) {
		tc := []struct {
			name string
			pos  PlaybackPosition
			want bool
		}{
			{"zero position", PlaybackPosition{TrackID: "a"}, false},
			{"middle of track", PlaybackPosition{TrackID: "a", Position: 30 * time.Second, Duration: 3 * time.Minute}, true},
			{"near the end", PlaybackPosition{TrackID: "a", Position: 178 * time.Second, Duration: 3 * time.Minute}, false},
			{"unknown duration", PlaybackPosition{TrackID: "a", Position: 30 * time.Second}, true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.pos.Resumable(5 * time.Second); got != tt.want {
					t.Errorf("Resumable() = %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("Validate", func(t *testing.T) {
		p := PlaybackPosition{TrackID: "a", Position: -time.Second}
		if err := p.Validate(); err == nil {
			t.Error("expected error for negative position")
		}
	})
}
