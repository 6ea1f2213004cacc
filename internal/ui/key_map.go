package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the now-playing view.
type keyMap struct {
	toggle     key.Binding
	back       key.Binding
	forward    key.Binding
	volumeUp   key.Binding
	volumeDown key.Binding
	mute       key.Binding
	next       key.Binding
	help       key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		back:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "-10s")),
		forward:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "+10s")),
		volumeUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		volumeDown: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		mute:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		next:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.next, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.back, k.forward},
		{k.volumeUp, k.volumeDown, k.mute},
		{k.next, k.help, k.quit},
	}
}
