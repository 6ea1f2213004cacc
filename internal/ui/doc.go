// Package ui implements the terminal now-playing view using bubbletea's Elm architecture.
//
// The (view) [Model] polls [Controller.Snapshot] on a fixed interval and renders:
//   - the track and session state, including the token refresh sub-state
//   - a position/duration bar built with charmbracelet/bubbles/progress
//   - volume, mute, the last session error and the upcoming queue
//
// Keys: space play/pause, ←/→ seek 10s, +/- volume, m mute, n next, ? help, q quit.
// Contextual help is displayed via charmbracelet/bubbles/help.
//
// Actions that can reach the network (next track) run as [tea.Cmd]s so the view keeps redrawing while they load.
package ui
