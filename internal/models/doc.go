// Package models defines the domain entities shared by the streaming session manager and its persistence layer.
//
// The package contains two categories of types:
//
// 1. Transient state: in-memory values owned by a single playback session
//   - [PlaybackSession] : the track being played, its signed URL, position and play intent
//
// 2. Persistent entities: rows cached in SQLite between runs
//   - [StreamingToken] : the opaque signed credential last issued for a track
//   - [PlaybackPosition] : the last known offset into a track, used to resume after reloads
//
// Persistent entities implement the [Model] interface so repositories can validate them before writes.
package models
