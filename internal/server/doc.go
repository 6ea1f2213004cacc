// Package server provides the local control API for a running player.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [BasicRouter] registers method patterns ("POST /seek") on an [http.ServeMux], so method mismatches are answered
// with 405 by the mux. [Middleware] added with Use wraps every route registered afterwards; the first middleware
// added is the outermost.
//
// [Logging] writes one structured line per request. [Recovery] converts a handler panic into a JSON 500.
//
// # Control Handler
//
// [ControlHandler] exposes a [Player] over JSON:
//
//	GET  /status                         current snapshot
//	POST /load    {"track_id": "..."}    start a new playback session
//	POST /play, POST /pause, POST /next
//	POST /seek    {"offset_ms": 42300}
//	POST /volume  {"level": 80}
//	POST /mute    {"muted": true}
//	POST /queue   {"track_ids": ["..."]}
//
// Every mutating route answers with the snapshot taken after the change. Errors are returned as {"error": "..."}
// with a status derived from the shared sentinel errors.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
