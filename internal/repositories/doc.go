// Package repositories implements SQLite persistence for streaming tokens and playback positions.
//
// Key Implementations:
//   - [TokenRepository] : last signed token per track, so a restarted player can refresh instead of re-signing
//   - [PositionRepository] : last known playback offset per track, so reloads resume where they left off
//
// Both tables are keyed by track ID and written with upserts; there is no history.
package repositories
