package engine

import "errors"

// ErrEngineUnavailable indicates the external engine could not be started or
// its control socket never came up. This is the one fatal error class: no
// session can exist without an engine.
var ErrEngineUnavailable = errors.New("engine unavailable")

// EventKind identifies an engine event.
type EventKind string

const (
	// EventFileLoaded is emitted exactly once per successful load.
	EventFileLoaded EventKind = "file-loaded"
	// EventPosition carries a playback clock tick.
	EventPosition EventKind = "position"
	// EventDuration is emitted when the duration of the loaded file becomes known.
	EventDuration EventKind = "duration"
	// EventEndOfFile is emitted when playback of the loaded file ends.
	EventEndOfFile EventKind = "end-of-file"
)

// EndReason describes why an end-of-file event fired.
type EndReason string

const (
	ReasonEOF   EndReason = "eof"
	ReasonStop  EndReason = "stop"
	ReasonError EndReason = "error"
)

// Event is one message on the engine's event stream. Every event is stamped
// with the generation of the load that produced it so consumers can discard
// events belonging to a superseded file.
type Event struct {
	Kind       EventKind
	Generation uint64
	Position   float64
	Duration   float64
	Reason     EndReason
}

// SeekMode selects absolute or relative seek targets.
type SeekMode int

const (
	SeekAbsolute SeekMode = iota
	SeekRelative
)

// Track describes an audio or subtitle track of the loaded file.
type Track struct {
	ID       int64
	Type     string
	Title    string
	Lang     string
	Selected bool
	External bool
}

// Engine is the command/event contract between the session controller and the
// external playback engine. Commands are fire-and-forget: completion is
// observed through the event stream, never awaited. Events are delivered on
// the engine's own goroutine; callers must marshal onto their own execution
// context before mutating state.
type Engine interface {
	// Load begins opening path and returns the generation stamped on all
	// events the load produces. Success is observed as a later
	// EventFileLoaded; the engine never signals load failure synchronously.
	Load(path string) (uint64, error)

	Play() error
	Pause() error
	TogglePause() error
	// Stop terminates current playback. It must not surface the resulting
	// engine-side end event as a natural end-of-file.
	Stop() error
	Seek(target float64, mode SeekMode) error

	SetSpeed(speed float64) error
	SetVolume(volume int) error
	SetMuted(muted bool) error

	AudioTracks() ([]Track, error)
	SubtitleTracks() ([]Track, error)
	SelectAudioTrack(id int64) error
	SelectSubtitleTrack(id int64) error

	// Property reads return the engine's last observed values and never block.
	Position() float64
	Duration() float64
	Paused() bool

	Events() <-chan Event
	Close() error
}
