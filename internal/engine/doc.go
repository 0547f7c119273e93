// Package engine wraps the external mpv playback engine behind a narrow
// command/event contract.
//
// Commands (load, play, seek, track selection) are fire-and-forget; their
// effects are observed on the event stream, which the engine produces on its
// own goroutine. Every event carries the generation of the load that produced
// it, so consumers can unambiguously drop events from a file that has since
// been replaced. The adapter never applies playback policy: it clamps
// nothing, skips nothing, and advances nothing.
package engine
