package session

// State is the lifecycle of the playback session.
type State string

const (
	// StateIdle means no file is loaded.
	StateIdle State = "idle"
	// StateLoading means a load was issued and file-loaded has not been observed.
	StateLoading State = "loading"
	// StatePlaying means the engine clock is running.
	StatePlaying State = "playing"
	// StatePaused means playback is suspended by the user.
	StatePaused State = "paused"
	// StateSeeking overlays Playing/Paused during a user scrub until the
	// engine acknowledges with a position event.
	StateSeeking State = "seeking"
	// StateEnded means the outro boundary fired or the file ran out.
	StateEnded State = "ended"
)

// Status is a read-only snapshot of the session used by UI collaborators.
type Status struct {
	State         State
	File          string
	Folder        string
	PlaylistIndex int
	PlaylistSize  int
	Position      float64
	Duration      float64
	SkipIntro     int
	SkipOutro     int
	Speed         float64
	SeekStep      int
	Volume        int
	Muted         bool
}
