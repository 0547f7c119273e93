package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"playhead/internal/engine"
	"playhead/internal/logging"
	"playhead/internal/playlist"
	"playhead/internal/settings"
)

// Resume policy constants: a saved percentage in (resumeMinPercent,
// resumeMaxPercent) triggers an automatic seek on reload, clamped to stay
// resumeOutroMargin seconds clear of the outro window.
const (
	resumeMinPercent  = 1.0
	resumeMaxPercent  = 95.0
	resumeOutroMargin = 5.0
)

// ErrNotPlaying is returned by commands that require a loaded file.
var ErrNotPlaying = errors.New("no file loaded")

// Controller is the playback session state machine. It owns the session state
// exclusively: engine events are consumed by a single dispatch goroutine, and
// both event handlers and the public command API serialize on one mutex, so
// every mutation happens on the session's logical execution context no matter
// which OS thread delivered it.
//
// Events are stamped with a load generation by the adapter; the controller
// drops anything from a superseded load, which is what keeps EOF events from
// an outgoing file from triggering a spurious auto-advance.
type Controller struct {
	engine engine.Engine
	store  *settings.Store
	logger *slog.Logger
	id     string

	mu             sync.Mutex
	state          State
	file           string
	generation     uint64
	list           *playlist.Playlist
	skipIntro      int
	skipOutro      int
	speed          float64
	seekStep       int
	volume         int
	muted          bool
	pendingResume  float64 // saved percentage awaiting a known duration
	stateAfterSeek State

	notifyMu sync.Mutex
	onChange func(Status)

	done     chan struct{}
	dispatch sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithStateListener registers a callback invoked after every state change.
// Invocations are serialized, so the callback needs no locking of its own. It
// runs off the controller lock and may read Status, but must not issue
// controller commands and should return promptly.
func WithStateListener(fn func(Status)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// New constructs a controller bound to an engine and starts consuming its
// event stream. The caller owns the engine's lifetime through Close.
func New(eng engine.Engine, store *settings.Store, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		engine:   eng,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "session"),
		id:       uuid.NewString(),
		state:    StateIdle,
		list:     playlist.New(),
		speed:    1.0,
		seekStep: 10,
		volume:   100,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.String(logging.FieldSessionID, c.id))

	c.dispatch.Add(1)
	go c.consumeEvents()
	return c
}

// Close persists outstanding progress, stops event dispatch, and shuts the
// engine down.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.persistProgressLocked()
	c.mu.Unlock()

	close(c.done)
	err := c.engine.Close()
	c.dispatch.Wait()
	return err
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Open starts playback of a single file, leaving any folder context behind.
func (c *Controller) Open(path string) error {
	c.mu.Lock()
	c.list = playlist.New()
	err := c.loadLocked(path)
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// OpenFolder resolves path into a playlist and starts playback at its first
// entry. Folders without playable files fail without touching session state.
func (c *Controller) OpenFolder(path string) error {
	list, err := playlist.OpenFolder(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.list = list
	err = c.loadLocked(list.Current())
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// Next advances the playlist. At the last entry it reports the boundary and
// changes nothing.
func (c *Controller) Next() error {
	return c.step((*playlist.Playlist).Next)
}

// Previous moves the playlist back. At the first entry it reports the
// boundary and changes nothing.
func (c *Controller) Previous() error {
	return c.step((*playlist.Playlist).Previous)
}

func (c *Controller) step(move func(*playlist.Playlist) (string, error)) error {
	c.mu.Lock()
	path, err := move(c.list)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	err = c.loadLocked(path)
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// Jump selects an arbitrary playlist index.
func (c *Controller) Jump(index int) error {
	c.mu.Lock()
	path, err := c.list.Jump(index)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	err = c.loadLocked(path)
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// loadLocked is transition step one: persist outgoing progress, then hand the
// new path to the engine. The generation returned by Load supersedes all
// in-flight events of the outgoing file before the engine can emit anything
// for the new one.
func (c *Controller) loadLocked(path string) error {
	c.persistProgressLocked()

	c.file = path
	c.state = StateLoading
	c.pendingResume = 0

	gen, err := c.engine.Load(path)
	c.generation = gen
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}
	c.logger.Info("loading file",
		logging.Args(logging.String(logging.FieldFile, path), logging.Uint64(logging.FieldGeneration, gen))...)
	return nil
}

func (c *Controller) persistProgressLocked() {
	if c.file == "" {
		return
	}
	duration := c.engine.Duration()
	if duration <= 0 {
		return
	}
	pct := c.engine.Position() / duration * 100
	c.store.SaveProgress(context.Background(), c.file, pct)
}

// TogglePause flips Playing and Paused. Any other state is left alone.
func (c *Controller) TogglePause() error {
	c.mu.Lock()
	switch c.state {
	case StatePlaying:
		c.state = StatePaused
	case StatePaused:
		c.state = StatePlaying
	default:
		c.mu.Unlock()
		return ErrNotPlaying
	}
	err := c.engine.TogglePause()
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// Stop halts playback and returns to Idle, keeping playlist context. The
// engine's resulting end event carries a stop reason and is ignored by the
// event loop, so an explicit stop can never auto-advance.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.persistProgressLocked()
	c.state = StateIdle
	c.file = ""
	err := c.engine.Stop()
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// Seek scrubs to an absolute position, clamped to [0, duration]. The session
// shows Seeking until the engine acknowledges with a position event, then
// returns to the pre-seek state.
func (c *Controller) Seek(target float64) error {
	c.mu.Lock()
	if c.state != StatePlaying && c.state != StatePaused && c.state != StateSeeking {
		c.mu.Unlock()
		return ErrNotPlaying
	}
	duration := c.engine.Duration()
	target = math.Min(math.Max(target, 0), math.Max(duration, 0))
	// A scrub during an unacknowledged scrub keeps the original pre-seek state.
	if c.state != StateSeeking {
		c.stateAfterSeek = c.state
	}
	c.state = StateSeeking
	err := c.engine.Seek(target, engine.SeekAbsolute)
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// SeekForward steps forward by the configured seek step.
func (c *Controller) SeekForward() error {
	return c.seekRelative(1)
}

// SeekBackward steps back by the configured seek step.
func (c *Controller) SeekBackward() error {
	return c.seekRelative(-1)
}

func (c *Controller) seekRelative(direction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle || c.state == StateLoading {
		return ErrNotPlaying
	}
	return c.engine.Seek(direction*float64(c.seekStep), engine.SeekRelative)
}

// Replay restarts the current file from the top of the content (past the
// configured intro).
func (c *Controller) Replay() error {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateLoading {
		c.mu.Unlock()
		return ErrNotPlaying
	}
	target := 0.0
	if c.skipIntro > 0 {
		target = float64(c.skipIntro)
	}
	err := c.engine.Seek(target, engine.SeekAbsolute)
	if err == nil {
		err = c.engine.Play()
		c.state = StatePlaying
	}
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// SetSkipIntro updates the intro offset for the current folder and persists it.
func (c *Controller) SetSkipIntro(seconds int) error {
	return c.updateSkip(func(fs *settings.FolderSettings) {
		fs.SkipIntro = seconds
	})
}

// SetSkipOutro updates the outro offset for the current folder and persists it.
func (c *Controller) SetSkipOutro(seconds int) error {
	return c.updateSkip(func(fs *settings.FolderSettings) {
		fs.SkipOutro = seconds
	})
}

func (c *Controller) updateSkip(mutate func(*settings.FolderSettings)) error {
	c.mu.Lock()
	if c.state == StateIdle || c.file == "" {
		c.mu.Unlock()
		return ErrNotPlaying
	}
	fs := c.store.LoadSettings(context.Background(), c.file)
	mutate(&fs)
	c.store.SaveSettings(context.Background(), c.file, fs)

	// Re-read for the clamped values.
	fs = c.store.LoadSettings(context.Background(), c.file)
	c.skipIntro = fs.SkipIntro
	c.skipOutro = fs.SkipOutro
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return nil
}

// SetSpeed updates playback speed, clamped, and persists it globally.
func (c *Controller) SetSpeed(speed float64) error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return ErrNotPlaying
	}
	global := c.store.UpdateGlobal(context.Background(), func(g *settings.GlobalSettings) {
		g.Speed = speed
	})
	c.speed = global.Speed
	err := c.engine.SetSpeed(global.Speed)
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// SetSeekStep updates the relative seek step, clamped, and persists it globally.
func (c *Controller) SetSeekStep(seconds int) error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return ErrNotPlaying
	}
	global := c.store.UpdateGlobal(context.Background(), func(g *settings.GlobalSettings) {
		g.SeekStep = seconds
	})
	c.seekStep = global.SeekStep
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return nil
}

// SetVolume updates engine volume, clamped to [0,100].
func (c *Controller) SetVolume(volume int) error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return ErrNotPlaying
	}
	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}
	c.volume = volume
	err := c.engine.SetVolume(volume)
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// ToggleMute flips the mute flag.
func (c *Controller) ToggleMute() error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return ErrNotPlaying
	}
	c.muted = !c.muted
	err := c.engine.SetMuted(c.muted)
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
	return err
}

// AudioTracks lists the audio tracks of the loaded file.
func (c *Controller) AudioTracks() ([]engine.Track, error) {
	if c.Status().State == StateIdle {
		return nil, ErrNotPlaying
	}
	return c.engine.AudioTracks()
}

// SelectAudioTrack switches the active audio track.
func (c *Controller) SelectAudioTrack(id int64) error {
	if c.Status().State == StateIdle {
		return ErrNotPlaying
	}
	return c.engine.SelectAudioTrack(id)
}

// SubtitleTracks lists the subtitle tracks of the loaded file.
func (c *Controller) SubtitleTracks() ([]engine.Track, error) {
	if c.Status().State == StateIdle {
		return nil, ErrNotPlaying
	}
	return c.engine.SubtitleTracks()
}

// SelectSubtitleTrack switches the active subtitle track; 0 disables subtitles.
func (c *Controller) SelectSubtitleTrack(id int64) error {
	if c.Status().State == StateIdle {
		return ErrNotPlaying
	}
	return c.engine.SelectSubtitleTrack(id)
}

// Status returns a snapshot of the session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Status {
	return Status{
		State:         c.state,
		File:          c.file,
		Folder:        c.list.Folder(),
		PlaylistIndex: c.list.CurrentIndex(),
		PlaylistSize:  c.list.Len(),
		Position:      c.engine.Position(),
		Duration:      c.engine.Duration(),
		SkipIntro:     c.skipIntro,
		SkipOutro:     c.skipOutro,
		Speed:         c.speed,
		SeekStep:      c.seekStep,
		Volume:        c.volume,
		Muted:         c.muted,
	}
}

// emit delivers a status snapshot to the listener. Snapshots originate from
// both the dispatch goroutine and command callers; notifyMu serializes the
// invocations so the listener never runs concurrently with itself.
func (c *Controller) emit(status Status) {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	c.onChange(status)
	c.notifyMu.Unlock()
}

// consumeEvents is the single consumer of the engine event stream. It is the
// only code path that reacts to the engine; handlers take the controller
// mutex, so engine callbacks never touch session state from their own context.
func (c *Controller) consumeEvents() {
	defer c.dispatch.Done()
	events := c.engine.Events()
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Controller) handleEvent(ev engine.Event) {
	c.mu.Lock()
	if ev.Generation != c.generation {
		c.mu.Unlock()
		return
	}

	switch ev.Kind {
	case engine.EventFileLoaded:
		c.handleFileLoadedLocked(ev)
	case engine.EventDuration:
		c.handleDurationLocked(ev)
	case engine.EventPosition:
		c.handlePositionLocked(ev)
	case engine.EventEndOfFile:
		c.handleEndOfFileLocked(ev)
	}
	status := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(status)
}

// handleFileLoadedLocked is transition step two: apply folder skip settings
// and global playback settings, seek past the intro, restore saved progress,
// and start playing.
func (c *Controller) handleFileLoadedLocked(ev engine.Event) {
	if c.state != StateLoading {
		return
	}

	ctx := context.Background()
	folderSettings := c.store.LoadSettings(ctx, c.file)
	c.skipIntro = folderSettings.SkipIntro
	c.skipOutro = folderSettings.SkipOutro

	global := c.store.Global(ctx)
	c.speed = global.Speed
	c.seekStep = global.SeekStep
	if err := c.engine.SetSpeed(global.Speed); err != nil {
		c.logger.Warn("apply speed failed", logging.Args(logging.Error(err))...)
	}

	if c.skipIntro > 0 {
		if err := c.engine.Seek(float64(c.skipIntro), engine.SeekAbsolute); err != nil {
			c.logger.Warn("skip intro seek failed", logging.Args(logging.Error(err))...)
		}
	}

	// The resume seek runs after, and may override, the skip-intro seek.
	if pct := c.store.Progress(ctx, c.file); pct > resumeMinPercent && pct < resumeMaxPercent {
		duration := ev.Duration
		if duration <= 0 {
			duration = c.engine.Duration()
		}
		if duration > 0 {
			c.resumeLocked(pct, duration)
		} else {
			// Duration not known yet; finish the resume on its event.
			c.pendingResume = pct
		}
	}

	if err := c.engine.Play(); err != nil {
		c.logger.Warn("play failed", logging.Args(logging.Error(err))...)
	}
	c.state = StatePlaying
	c.logger.Info("file loaded",
		logging.Args(
			logging.String(logging.FieldFile, c.file),
			logging.Int("skip_intro", c.skipIntro),
			logging.Int("skip_outro", c.skipOutro))...)
}

// resumeLocked seeks to a saved percentage, clamped so the target never lands
// inside the outro window.
func (c *Controller) resumeLocked(pct, duration float64) {
	target := pct / 100 * duration
	if c.skipOutro > 0 {
		target = math.Min(target, duration-float64(c.skipOutro)-resumeOutroMargin)
	}
	if target <= 0 {
		return
	}
	if err := c.engine.Seek(target, engine.SeekAbsolute); err != nil {
		c.logger.Warn("resume seek failed", logging.Args(logging.Error(err))...)
		return
	}
	c.logger.Info("resumed playback",
		logging.Args(logging.Float64("percent", pct), logging.Float64("target", target))...)
}

func (c *Controller) handleDurationLocked(ev engine.Event) {
	if c.pendingResume > 0 && ev.Duration > 0 {
		c.resumeLocked(c.pendingResume, ev.Duration)
		c.pendingResume = 0
	}
}

func (c *Controller) handlePositionLocked(ev engine.Event) {
	if c.state == StateSeeking {
		c.state = c.stateAfterSeek
	}
	if c.state != StatePlaying {
		return
	}

	duration := ev.Duration
	if duration <= 0 {
		duration = c.engine.Duration()
	}
	if c.skipOutro <= 0 || duration <= 0 {
		return
	}

	// Require a minimum played window so a tick right after load or a seek
	// near the end cannot false-trigger the outro stop.
	minPlayed := math.Max(10, duration*0.10)
	if ev.Position >= minPlayed && ev.Position >= duration-float64(c.skipOutro) {
		c.logger.Info("outro boundary reached",
			logging.Args(logging.Float64("position", ev.Position), logging.Int("skip_outro", c.skipOutro))...)
		if err := c.engine.Stop(); err != nil {
			c.logger.Warn("outro stop failed", logging.Args(logging.Error(err))...)
		}
		c.endedLocked()
	}
}

func (c *Controller) handleEndOfFileLocked(ev engine.Event) {
	// Stop-reason end events come from our own Stop calls (outro trigger,
	// explicit stop) and must not count as a natural end.
	if ev.Reason != engine.ReasonEOF {
		return
	}
	if c.state != StatePlaying && c.state != StatePaused && c.state != StateSeeking {
		return
	}
	c.endedLocked()
}

// endedLocked finishes the current file and auto-advances when the playlist
// has a next entry.
func (c *Controller) endedLocked() {
	c.state = StateEnded

	next, err := c.list.Next()
	if err != nil {
		if errors.Is(err, playlist.ErrAtBoundary) && c.list.Len() > 0 {
			c.logger.Info("playlist finished", logging.Args(logging.String(logging.FieldFolder, c.list.Folder()))...)
		}
		return
	}
	if loadErr := c.loadLocked(next); loadErr != nil {
		c.logger.Warn("auto-advance load failed",
			logging.Args(logging.String(logging.FieldFile, next), logging.Error(loadErr))...)
	}
}
