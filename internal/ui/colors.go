package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/hlsx/internal/player"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	dim   lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		dim:   NewStyle(h),
		help:  NewEm(h).MarginTop(1),
	}
}

// state picks the style for a playback state badge.
func (p *Palette) state(s player.State) lipgloss.Style {
	switch s {
	case player.StatePlaying:
		return p.ok
	case player.StateLoading:
		return p.warn
	default:
		return p.dim
	}
}

// refresh picks the style for the token refresh badge.
func (p *Palette) refresh(r player.RefreshPhase) lipgloss.Style {
	switch r {
	case player.RefreshInFlight, player.RefreshCooldown:
		return p.warn
	case player.RefreshExpired:
		return p.err
	default:
		return p.dim
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
