package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hlsx/internal/player"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTick MsgKind = iota
	MsgActionDone
)

// tickMsg is the constructor for [MsgTick]
func tickMsg(snapshot player.Snapshot) Msg {
	return Msg{kind: MsgTick, data: snapshot}
}

// actionDone carries the outcome of a [tea.Cmd] started from a key press.
type actionDone struct {
	action string
	err    error
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(action string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionDone{action, err}}
}
