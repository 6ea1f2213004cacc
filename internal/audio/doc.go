// Package audio implements the output sink fed by the HLS engine.
//
// [ClockSink] mirrors the media element surface a browser player would drive: current time, duration, volume,
// play and pause, and the timeupdate, durationchange, ended, error, loadstart and canplay events.
// Media bytes are written to an [io.Writer] (a pipe into a decoder, a file, or [io.Discard]); playback position
// is a clock that advances while playing and stalls at the end of the buffered data.
package audio
