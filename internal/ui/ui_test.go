package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hlsx/internal/player"
	"github.com/desertthunder/hlsx/internal/shared"
)

type fakeController struct {
	snap    player.Snapshot
	calls   []string
	err     error
	nextErr error
}

func (c *fakeController) Snapshot() player.Snapshot { return c.snap }

func (c *fakeController) Toggle() error {
	c.calls = append(c.calls, "toggle")
	c.snap.Playing = !c.snap.Playing
	return c.err
}

func (c *fakeController) SeekBy(d time.Duration) error {
	c.calls = append(c.calls, fmt.Sprintf("seek %s", d))
	return c.err
}

func (c *fakeController) SetVolume(level int) error {
	c.calls = append(c.calls, fmt.Sprintf("volume %d", level))
	c.snap.Volume = level
	return c.err
}

func (c *fakeController) SetMuted(muted bool) {
	c.calls = append(c.calls, fmt.Sprintf("mute %v", muted))
	c.snap.Muted = muted
}

func (c *fakeController) Next(context.Context) error {
	c.calls = append(c.calls, "next")
	return c.nextErr
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(c *fakeController) *Model {
	m := NewModel(context.Background(), c)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		snap player.Snapshot
		msg  tea.KeyMsg
		want string
	}{
		{"space toggles", player.Snapshot{}, tea.KeyMsg{Type: tea.KeySpace}, "toggle"},
		{"left seeks back", player.Snapshot{}, tea.KeyMsg{Type: tea.KeyLeft}, "seek -10s"},
		{"right seeks forward", player.Snapshot{}, tea.KeyMsg{Type: tea.KeyRight}, "seek 10s"},
		{"plus raises volume", player.Snapshot{Volume: 50}, runes("+"), "volume 55"},
		{"minus lowers volume", player.Snapshot{Volume: 50}, runes("-"), "volume 45"},
		{"volume clamps high", player.Snapshot{Volume: 98}, runes("+"), "volume 100"},
		{"volume clamps low", player.Snapshot{Volume: 3}, runes("-"), "volume 0"},
		{"m mutes", player.Snapshot{}, runes("m"), "mute true"},
		{"m unmutes", player.Snapshot{Muted: true}, runes("m"), "mute false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeController{snap: tt.snap}
			m := newTestModel(c)
			if _, cmd := m.Update(tt.msg); cmd != nil {
				t.Error("expected no command")
			}
			if len(c.calls) != 1 || c.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", c.calls, tt.want)
			}
		})
	}

	t.Run("next runs as a command", func(t *testing.T) {
		c := &fakeController{nextErr: shared.ErrQueueEmpty}
		m := newTestModel(c)

		_, cmd := m.Update(runes("n"))
		if cmd == nil {
			t.Fatal("expected a command")
		}
		if len(c.calls) != 0 {
			t.Fatalf("next should not run inline: %v", c.calls)
		}

		// a second press while loading is ignored
		if _, again := m.Update(runes("n")); again != nil {
			t.Error("expected repeated next to be ignored")
		}

		m.Update(cmd())
		if len(c.calls) != 1 || c.calls[0] != "next" {
			t.Errorf("calls = %v", c.calls)
		}
		if !errors.Is(m.err, shared.ErrQueueEmpty) {
			t.Errorf("err = %v, want queue empty", m.err)
		}
		if m.pending != "" {
			t.Errorf("pending = %q after completion", m.pending)
		}
	})

	t.Run("quit", func(t *testing.T) {
		m := newTestModel(&fakeController{})
		_, cmd := m.Update(runes("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})

	t.Run("help toggles", func(t *testing.T) {
		m := newTestModel(&fakeController{})
		m.Update(runes("?"))
		if !m.help.ShowAll {
			t.Error("expected full help")
		}
		if !strings.Contains(m.View(), "volume up") {
			t.Error("full help should list volume keys")
		}
	})

	t.Run("action error shown", func(t *testing.T) {
		c := &fakeController{err: shared.ErrNoSession}
		m := newTestModel(c)
		m.Update(tea.KeyMsg{Type: tea.KeySpace})
		if !strings.Contains(m.View(), shared.ErrNoSession.Error()) {
			t.Error("view should show the action error")
		}
	})
}

func TestTick(t *testing.T) {
	c := &fakeController{}
	m := newTestModel(c)
	if m.Init() == nil {
		t.Fatal("Init should schedule a tick")
	}

	snap := player.Snapshot{TrackID: "A", State: player.StatePlaying, Position: 30 * time.Second, Duration: time.Minute}
	_, cmd := m.Update(tickMsg(snap))
	if cmd == nil {
		t.Error("tick should reschedule")
	}
	if m.snap.TrackID != "A" {
		t.Errorf("snapshot not applied: %+v", m.snap)
	}
}

func TestView(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		m := newTestModel(&fakeController{snap: player.Snapshot{State: player.StateIdle, Volume: 80}})
		view := m.View()
		for _, want := range []string{"Nothing playing", "IDLE", "token:", "idle", "Volume: 80%", "Queue empty"} {
			if !strings.Contains(view, want) {
				t.Errorf("view missing %q:\n%s", want, view)
			}
		}
	})

	t.Run("playing", func(t *testing.T) {
		m := newTestModel(&fakeController{snap: player.Snapshot{
			TrackID:  "track-42",
			State:    player.StatePlaying,
			Refresh:  player.RefreshState{Phase: player.RefreshInFlight},
			Position: 42*time.Second + 300*time.Millisecond,
			Duration: 3*time.Minute + 5*time.Second,
			Volume:   60,
			Muted:    true,
			Queue:    []string{"B", "C"},
		}})
		view := m.View()
		for _, want := range []string{"track-42", "PLAYING", "refreshing", "0:42", "3:05", "muted (60%)", "1. B", "2. C"} {
			if !strings.Contains(view, want) {
				t.Errorf("view missing %q:\n%s", want, view)
			}
		}
	})

	t.Run("session error", func(t *testing.T) {
		m := newTestModel(&fakeController{snap: player.Snapshot{
			TrackID: "A",
			State:   player.StatePaused,
			Refresh: player.RefreshState{Phase: player.RefreshExpired},
			Error:   shared.ErrSessionExpired.Error(),
		}})
		view := m.View()
		if !strings.Contains(view, "Error: "+shared.ErrSessionExpired.Error()) {
			t.Errorf("view missing session error:\n%s", view)
		}
		if !strings.Contains(view, "expired") {
			t.Errorf("view missing expired token state:\n%s", view)
		}
	})
}

func TestRenderQueue(t *testing.T) {
	queue := []string{"a", "b", "c", "d", "e", "f", "g"}
	out := renderQueue(queue)
	if !strings.Contains(out, "5. e") || strings.Contains(out, "6. f") {
		t.Errorf("unexpected queue rendering:\n%s", out)
	}
	if !strings.Contains(out, "2 more") {
		t.Errorf("expected elision line:\n%s", out)
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{42*time.Second + 300*time.Millisecond, "0:42"},
		{3*time.Minute + 5*time.Second, "3:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, c := range cases {
		if got := formatClock(c.in); got != c.want {
			t.Errorf("formatClock(%s) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRatio(t *testing.T) {
	if r := ratio(time.Second, 0); r != 0 {
		t.Errorf("zero duration ratio = %v", r)
	}
	if r := ratio(30*time.Second, time.Minute); r != 0.5 {
		t.Errorf("ratio = %v, want 0.5", r)
	}
	if r := ratio(2*time.Minute, time.Minute); r != 1 {
		t.Errorf("ratio should clamp to 1, got %v", r)
	}
}
