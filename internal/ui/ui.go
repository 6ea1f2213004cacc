package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hlsx/internal/player"
)

const (
	// DefaultPollInterval is how often the view refreshes its snapshot.
	DefaultPollInterval = 250 * time.Millisecond

	seekStep   = 10 * time.Second
	volumeStep = 5
)

// Controller is the subset of [player.Manager] the view drives.
type Controller interface {
	Snapshot() player.Snapshot
	Toggle() error
	SeekBy(delta time.Duration) error
	SetVolume(level int) error
	SetMuted(muted bool)
	Next(ctx context.Context) error
}

// Model represents the now-playing view state.
type Model struct {
	ctx      context.Context
	player   Controller
	interval time.Duration
	snap     player.Snapshot
	bar      progress.Model
	help     help.Model
	keys     keyMap
	width    int
	err      error
	pending  string
}

// NewModel creates a new now-playing model bound to p.
func NewModel(ctx context.Context, p Controller) *Model {
	return &Model{
		ctx:      ctx,
		player:   p,
		interval: DefaultPollInterval,
		snap:     p.Snapshot(),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts the snapshot poll.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-16, 10)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgTick:
			m.snap = msg.data.(player.Snapshot)
			return m, m.tick()
		case MsgActionDone:
			done := msg.data.(actionDone)
			if done.action == m.pending {
				m.pending = ""
			}
			m.err = done.err
			m.snap = m.player.Snapshot()
		}
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		m.err = m.player.Toggle()
	case key.Matches(msg, m.keys.back):
		m.err = m.player.SeekBy(-seekStep)
	case key.Matches(msg, m.keys.forward):
		m.err = m.player.SeekBy(seekStep)
	case key.Matches(msg, m.keys.volumeUp):
		m.err = m.player.SetVolume(min(m.snap.Volume+volumeStep, 100))
	case key.Matches(msg, m.keys.volumeDown):
		m.err = m.player.SetVolume(max(m.snap.Volume-volumeStep, 0))
	case key.Matches(msg, m.keys.mute):
		m.player.SetMuted(!m.snap.Muted)
		m.err = nil
	case key.Matches(msg, m.keys.next):
		if m.pending != "" {
			return m, nil
		}
		m.pending = "next"
		return m, m.next()
	default:
		return m, nil
	}
	m.snap = m.player.Snapshot()
	return m, nil
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return tickMsg(m.player.Snapshot())
	})
}

func (m *Model) next() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg("next", m.player.Next(m.ctx))
	}
}

// View renders the now-playing screen.
func (m *Model) View() string {
	s := m.snap

	var b strings.Builder
	b.WriteString(m.renderTitle())
	b.WriteString("\n")

	status := styles.state(s.State).Render(strings.ToUpper(string(s.State)))
	if s.Loading {
		status += " " + styles.warn.Render("buffering…")
	}
	fmt.Fprintf(&b, "%s  token: %s\n\n", status, styles.refresh(s.Refresh.Phase).Render(s.Refresh.String()))

	fmt.Fprintf(&b, "%s %s %s\n", formatClock(s.Position), m.bar.ViewAs(ratio(s.Position, s.Duration)), formatClock(s.Duration))
	b.WriteString(renderVolume(s.Volume, s.Muted))
	b.WriteString("\n")

	if s.Error != "" {
		fmt.Fprintf(&b, "\n%s\n", styles.err.Render("Error: "+s.Error))
	} else if m.err != nil {
		fmt.Fprintf(&b, "\n%s\n", styles.warn.Render(m.err.Error()))
	}

	b.WriteString("\n")
	b.WriteString(renderQueue(s.Queue))
	b.WriteString("\n")
	b.WriteString(styles.help.Render(m.help.View(m.keys)))
	return b.String()
}

func (m *Model) renderTitle() string {
	if m.snap.TrackID == "" {
		return styles.title.Render("Nothing playing")
	}
	return styles.title.Render("♪ " + m.snap.TrackID)
}

func renderVolume(level int, muted bool) string {
	if muted {
		return styles.dim.Render(fmt.Sprintf("Volume: muted (%d%%)", level))
	}
	return fmt.Sprintf("Volume: %d%%", level)
}

func ratio(pos, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	r := float64(pos) / float64(total)
	return min(max(r, 0), 1)
}

// formatClock renders d as m:ss, or h:mm:ss past an hour.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, mins, secs := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}
