// Package hls implements a small adaptive-bitrate HLS audio engine.
//
// An [Engine] fetches a manifest, picks a rendition, and streams fragments into a [Sink] on a loader goroutine.
// Manifests are decoded with github.com/grafov/m3u8; both master and media playlists are accepted.
//
// # Lifecycle
//
//  1. [Engine.Load] fetches and parses the manifest. It returns once the manifest is parsed and a
//     level has been chosen.
//  2. [Engine.StartLoad] (or [Engine.Seek]) starts fragment loading from the fragment containing the offset.
//  3. [Engine.Destroy] stops loading; later events are dropped.
//
// Query parameters of the manifest URL (the signed token) are carried onto child playlists and fragments that
// have no query of their own.
//
// # Errors
//
// Failures are reported as [ErrorEvent] values: returned from Load, and passed to [Hooks.OnError] from the loader.
// Fragment loads that fail with a transport error or 5xx are retried as non-fatal events before turning fatal;
// 4xx fragment failures are fatal at once.
//
// # Bitrate Adaptation
//
// Each fragment download feeds an EWMA throughput estimate. Before each fragment the engine selects the highest
// level whose advertised bandwidth fits within a safety fraction of the estimate.
package hls
