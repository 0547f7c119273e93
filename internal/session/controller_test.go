package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"playhead/internal/engine"
	"playhead/internal/logging"
	"playhead/internal/playlist"
	"playhead/internal/settings"
	"playhead/internal/testsupport"
)

type seekCall struct {
	target float64
	mode   engine.SeekMode
}

// fakeEngine is a scriptable Engine: tests push events into its channel and
// inspect the commands the controller issued.
type fakeEngine struct {
	mu       sync.Mutex
	gen      uint64
	position float64
	duration float64
	loads    []string
	seeks    []seekCall
	stops    int
	plays    int
	speed    float64

	events chan engine.Event
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan engine.Event, 16)}
}

func (f *fakeEngine) Load(path string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.position = 0
	f.duration = 0
	f.loads = append(f.loads, path)
	return f.gen, nil
}

func (f *fakeEngine) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakeEngine) Pause() error       { return nil }
func (f *fakeEngine) TogglePause() error { return nil }

func (f *fakeEngine) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeEngine) Seek(target float64, mode engine.SeekMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seekCall{target: target, mode: mode})
	return nil
}

func (f *fakeEngine) SetSpeed(speed float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speed = speed
	return nil
}

func (f *fakeEngine) SetVolume(int) error { return nil }
func (f *fakeEngine) SetMuted(bool) error { return nil }

func (f *fakeEngine) AudioTracks() ([]engine.Track, error)    { return nil, nil }
func (f *fakeEngine) SubtitleTracks() ([]engine.Track, error) { return nil, nil }
func (f *fakeEngine) SelectAudioTrack(int64) error            { return nil }
func (f *fakeEngine) SelectSubtitleTrack(int64) error         { return nil }

func (f *fakeEngine) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeEngine) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeEngine) Paused() bool { return false }

func (f *fakeEngine) Events() <-chan engine.Event { return f.events }

func (f *fakeEngine) Close() error {
	close(f.events)
	return nil
}

func (f *fakeEngine) setClock(position, duration float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = position
	f.duration = duration
}

func (f *fakeEngine) generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

func (f *fakeEngine) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func (f *fakeEngine) lastLoad() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) == 0 {
		return ""
	}
	return f.loads[len(f.loads)-1]
}

func (f *fakeEngine) seekTargets() []seekCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]seekCall, len(f.seeks))
	copy(out, f.seeks)
	return out
}

func (f *fakeEngine) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *fakeEngine) push(ev engine.Event) {
	f.events <- ev
}

func newTestController(t *testing.T) (*Controller, *fakeEngine, *settings.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	eng := newFakeEngine()
	ctrl := New(eng, store, logging.NewNop())
	t.Cleanup(func() {
		ctrl.Close()
	})
	return ctrl, eng, store
}

// waitFor polls until cond holds. Event handling is asynchronous, so tests
// observe effects rather than sequencing them.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestOpenFolderLoadsFirstEntry(t *testing.T) {
	ctrl, eng, _ := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "b.mkv", "a.mkv", "notes.txt")

	if err := ctrl.OpenFolder(dir); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}

	if got, want := eng.lastLoad(), filepath.Join(dir, "a.mkv"); got != want {
		t.Fatalf("loaded %q, want %q", got, want)
	}
	status := ctrl.Status()
	if status.State != StateLoading || status.PlaylistSize != 2 || status.PlaylistIndex != 0 {
		t.Fatalf("unexpected status after open: %+v", status)
	}

	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })
}

func TestOpenFolderWithoutVideosFails(t *testing.T) {
	ctrl, eng, _ := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "readme.md")

	err := ctrl.OpenFolder(dir)
	if !errors.Is(err, playlist.ErrNoVideoFiles) {
		t.Fatalf("expected ErrNoVideoFiles, got %v", err)
	}
	if eng.loadCount() != 0 {
		t.Fatal("engine should not have been touched")
	}
	if ctrl.Status().State != StateIdle {
		t.Fatalf("state changed on failed open: %v", ctrl.Status().State)
	}
}

func TestFileLoadedAppliesSkipIntro(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")
	file := filepath.Join(dir, "e1.mkv")

	fs := store.LoadSettings(context.Background(), file)
	fs.SkipIntro = 85
	store.SaveSettings(context.Background(), file, fs)

	if err := ctrl.Open(file); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})

	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })
	seeks := eng.seekTargets()
	if len(seeks) != 1 || seeks[0].target != 85 || seeks[0].mode != engine.SeekAbsolute {
		t.Fatalf("expected one absolute seek to 85, got %v", seeks)
	}
	if ctrl.Status().SkipIntro != 85 {
		t.Fatalf("skip intro not reflected in status: %+v", ctrl.Status())
	}
}

func TestResumeClampsClearOfOutro(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")
	file := filepath.Join(dir, "e1.mkv")

	fs := store.LoadSettings(context.Background(), file)
	fs.SkipOutro = 100
	store.SaveSettings(context.Background(), file, fs)
	store.SaveProgress(context.Background(), file, 94)

	if err := ctrl.Open(file); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.setClock(0, 1000)
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation(), Duration: 1000})

	waitFor(t, func() bool { return len(eng.seekTargets()) == 1 })
	// 94% of 1000 is 940; the clamp pulls it to 1000-100-5.
	if got := eng.seekTargets()[0].target; got != 895 {
		t.Fatalf("resume target = %v, want 895", got)
	}
}

func TestResumeDeferredUntilDurationKnown(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")
	file := filepath.Join(dir, "e1.mkv")

	store.SaveProgress(context.Background(), file, 50)

	if err := ctrl.Open(file); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })
	if len(eng.seekTargets()) != 0 {
		t.Fatalf("seek before duration known: %v", eng.seekTargets())
	}

	eng.push(engine.Event{Kind: engine.EventDuration, Generation: eng.generation(), Duration: 600})
	waitFor(t, func() bool { return len(eng.seekTargets()) == 1 })
	if got := eng.seekTargets()[0].target; got != 300 {
		t.Fatalf("deferred resume target = %v, want 300", got)
	}
}

func TestProgressOutsideResumeWindowIgnored(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")
	file := filepath.Join(dir, "e1.mkv")

	store.SaveProgress(context.Background(), file, 97)

	if err := ctrl.Open(file); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.setClock(0, 1000)
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation(), Duration: 1000})

	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })
	if len(eng.seekTargets()) != 0 {
		t.Fatalf("97%% progress should restart from zero, got seeks %v", eng.seekTargets())
	}
}

func TestOutroStopsAndAdvances(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv", "e2.mkv")
	first := filepath.Join(dir, "e1.mkv")

	fs := store.LoadSettings(context.Background(), first)
	fs.SkipOutro = 30
	store.SaveSettings(context.Background(), first, fs)

	if err := ctrl.OpenFolder(dir); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	eng.setClock(0, 300)
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation(), Duration: 300})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	eng.setClock(271, 300)
	eng.push(engine.Event{Kind: engine.EventPosition, Generation: eng.generation(), Position: 271, Duration: 300})

	waitFor(t, func() bool { return eng.lastLoad() == filepath.Join(dir, "e2.mkv") })
	if eng.stopCount() != 1 {
		t.Fatalf("expected one engine stop, got %d", eng.stopCount())
	}
	if eng.loadCount() != 2 {
		t.Fatalf("expected exactly two loads, got %d", eng.loadCount())
	}
}

func TestOutroRequiresMinimumPlayed(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")
	file := filepath.Join(dir, "e1.mkv")

	fs := store.LoadSettings(context.Background(), file)
	fs.SkipOutro = 95
	store.SaveSettings(context.Background(), file, fs)

	if err := ctrl.Open(file); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.setClock(0, 100)
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation(), Duration: 100})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	// Past the outro boundary (5s) but inside the minimum played window.
	eng.setClock(6, 100)
	eng.push(engine.Event{Kind: engine.EventPosition, Generation: eng.generation(), Position: 6, Duration: 100})
	time.Sleep(50 * time.Millisecond)
	if eng.stopCount() != 0 {
		t.Fatal("outro fired before the minimum played window")
	}

	eng.setClock(12, 100)
	eng.push(engine.Event{Kind: engine.EventPosition, Generation: eng.generation(), Position: 12, Duration: 100})
	waitFor(t, func() bool { return eng.stopCount() == 1 })
}

func TestNaturalEndAdvancesOnce(t *testing.T) {
	ctrl, eng, _ := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv", "e2.mkv")

	if err := ctrl.OpenFolder(dir); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	eng.push(engine.Event{Kind: engine.EventEndOfFile, Generation: eng.generation(), Reason: engine.ReasonEOF})
	waitFor(t, func() bool { return eng.lastLoad() == filepath.Join(dir, "e2.mkv") })
	if eng.loadCount() != 2 {
		t.Fatalf("expected exactly two loads, got %d", eng.loadCount())
	}
	if got := ctrl.Status().PlaylistIndex; got != 1 {
		t.Fatalf("playlist index = %d, want 1", got)
	}
}

func TestEndAtLastEntryStops(t *testing.T) {
	ctrl, eng, _ := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "only.mkv")

	if err := ctrl.OpenFolder(dir); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	eng.push(engine.Event{Kind: engine.EventEndOfFile, Generation: eng.generation(), Reason: engine.ReasonEOF})
	waitFor(t, func() bool { return ctrl.Status().State == StateEnded })
	if eng.loadCount() != 1 {
		t.Fatalf("no further load expected, got %d", eng.loadCount())
	}
}

func TestStaleGenerationEventsDropped(t *testing.T) {
	ctrl, eng, _ := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv", "e2.mkv")

	if err := ctrl.OpenFolder(dir); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	staleGen := eng.generation()
	if err := ctrl.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}

	// End event from the replaced file arrives late.
	eng.push(engine.Event{Kind: engine.EventEndOfFile, Generation: staleGen, Reason: engine.ReasonEOF})
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})

	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })
	if eng.loadCount() != 2 {
		t.Fatalf("stale end-of-file triggered an advance: %d loads", eng.loadCount())
	}
}

func TestExplicitStopNeverAdvances(t *testing.T) {
	ctrl, eng, _ := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv", "e2.mkv")

	if err := ctrl.OpenFolder(dir); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	if err := ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventEndOfFile, Generation: eng.generation(), Reason: engine.ReasonStop})

	time.Sleep(50 * time.Millisecond)
	if eng.loadCount() != 1 {
		t.Fatalf("stop advanced the playlist: %d loads", eng.loadCount())
	}
	if ctrl.Status().State != StateIdle {
		t.Fatalf("state after stop = %v", ctrl.Status().State)
	}
}

func TestTogglePauseTransitions(t *testing.T) {
	ctrl, eng, _ := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")

	if err := ctrl.Open(filepath.Join(dir, "e1.mkv")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	if err := ctrl.TogglePause(); err != nil {
		t.Fatalf("TogglePause: %v", err)
	}
	if ctrl.Status().State != StatePaused {
		t.Fatalf("state = %v, want paused", ctrl.Status().State)
	}
	if err := ctrl.TogglePause(); err != nil {
		t.Fatalf("TogglePause: %v", err)
	}
	if ctrl.Status().State != StatePlaying {
		t.Fatalf("state = %v, want playing", ctrl.Status().State)
	}
}

func TestSeekClampsAndRestoresState(t *testing.T) {
	ctrl, eng, _ := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")

	if err := ctrl.Open(filepath.Join(dir, "e1.mkv")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.setClock(0, 100)
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation(), Duration: 100})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	if err := ctrl.Seek(500); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if ctrl.Status().State != StateSeeking {
		t.Fatalf("state during seek = %v", ctrl.Status().State)
	}
	seeks := eng.seekTargets()
	if got := seeks[len(seeks)-1].target; got != 100 {
		t.Fatalf("seek target = %v, want clamp to 100", got)
	}

	eng.push(engine.Event{Kind: engine.EventPosition, Generation: eng.generation(), Position: 100, Duration: 100})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })
}

func TestAdvancePersistsProgress(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv", "e2.mkv")
	first := filepath.Join(dir, "e1.mkv")

	if err := ctrl.OpenFolder(dir); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	eng.setClock(50, 200)
	if err := ctrl.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}

	if got := store.Progress(context.Background(), first); got != 25 {
		t.Fatalf("persisted progress = %v, want 25", got)
	}
}

func TestPlaylistBoundaryErrors(t *testing.T) {
	ctrl, eng, _ := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")

	if err := ctrl.OpenFolder(dir); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	if err := ctrl.Next(); !errors.Is(err, playlist.ErrAtBoundary) {
		t.Fatalf("Next at end = %v, want boundary error", err)
	}
	if err := ctrl.Previous(); !errors.Is(err, playlist.ErrAtBoundary) {
		t.Fatalf("Previous at start = %v, want boundary error", err)
	}
	if eng.loadCount() != 1 {
		t.Fatalf("boundary moves issued loads: %d", eng.loadCount())
	}
}

func TestIdleRejectsPlaybackCommands(t *testing.T) {
	ctrl, _, _ := newTestController(t)

	if err := ctrl.TogglePause(); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("TogglePause idle = %v", err)
	}
	if err := ctrl.Seek(10); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("Seek idle = %v", err)
	}
	if err := ctrl.SetSpeed(2); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("SetSpeed idle = %v", err)
	}
	if _, err := ctrl.AudioTracks(); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("AudioTracks idle = %v", err)
	}
	if err := ctrl.SelectSubtitleTrack(1); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("SelectSubtitleTrack idle = %v", err)
	}
}

func TestSetSkipIntroClampsAndPersists(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")
	file := filepath.Join(dir, "e1.mkv")

	if err := ctrl.Open(file); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	if err := ctrl.SetSkipIntro(900); err != nil {
		t.Fatalf("SetSkipIntro: %v", err)
	}
	if got := ctrl.Status().SkipIntro; got != settings.MaxSkipSeconds {
		t.Fatalf("skip intro = %d, want clamp to %d", got, settings.MaxSkipSeconds)
	}
	if got := store.LoadSettings(context.Background(), file).SkipIntro; got != settings.MaxSkipSeconds {
		t.Fatalf("persisted skip intro = %d", got)
	}
}

func TestSetSpeedClampsAndApplies(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")

	if err := ctrl.Open(filepath.Join(dir, "e1.mkv")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	if err := ctrl.SetSpeed(9); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if got := ctrl.Status().Speed; got != settings.MaxSpeed {
		t.Fatalf("speed = %v, want clamp to %v", got, settings.MaxSpeed)
	}
	if got := store.Global(context.Background()).Speed; got != settings.MaxSpeed {
		t.Fatalf("persisted speed = %v", got)
	}
	eng.mu.Lock()
	applied := eng.speed
	eng.mu.Unlock()
	if applied != settings.MaxSpeed {
		t.Fatalf("engine speed = %v", applied)
	}
}

func TestReplaySeeksPastIntro(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")
	file := filepath.Join(dir, "e1.mkv")

	fs := store.LoadSettings(context.Background(), file)
	fs.SkipIntro = 40
	store.SaveSettings(context.Background(), file, fs)

	if err := ctrl.Open(file); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	if err := ctrl.Replay(); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	seeks := eng.seekTargets()
	if got := seeks[len(seeks)-1]; got.target != 40 || got.mode != engine.SeekAbsolute {
		t.Fatalf("replay seek = %+v, want absolute 40", got)
	}
}

func TestRelativeSeekUsesSeekStep(t *testing.T) {
	ctrl, eng, store := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")

	store.UpdateGlobal(context.Background(), func(g *settings.GlobalSettings) {
		g.SeekStep = 30
	})

	if err := ctrl.Open(filepath.Join(dir, "e1.mkv")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	if err := ctrl.SeekForward(); err != nil {
		t.Fatalf("SeekForward: %v", err)
	}
	if err := ctrl.SeekBackward(); err != nil {
		t.Fatalf("SeekBackward: %v", err)
	}
	seeks := eng.seekTargets()
	if len(seeks) < 2 {
		t.Fatalf("expected two relative seeks, got %v", seeks)
	}
	forward, backward := seeks[len(seeks)-2], seeks[len(seeks)-1]
	if forward.target != 30 || forward.mode != engine.SeekRelative {
		t.Fatalf("forward seek = %+v", forward)
	}
	if backward.target != -30 || backward.mode != engine.SeekRelative {
		t.Fatalf("backward seek = %+v", backward)
	}
}

func TestSeekWhileSeekingKeepsPriorState(t *testing.T) {
	ctrl, eng, _ := newTestController(t)
	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")

	if err := ctrl.Open(filepath.Join(dir, "e1.mkv")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.setClock(0, 100)
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation(), Duration: 100})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	if err := ctrl.TogglePause(); err != nil {
		t.Fatalf("TogglePause: %v", err)
	}
	if err := ctrl.Seek(10); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	// Second scrub lands before the engine acknowledges the first.
	if err := ctrl.Seek(20); err != nil {
		t.Fatalf("Seek while seeking: %v", err)
	}
	seeks := eng.seekTargets()
	if got := seeks[len(seeks)-1].target; got != 20 {
		t.Fatalf("second scrub target = %v, want 20", got)
	}

	eng.push(engine.Event{Kind: engine.EventPosition, Generation: eng.generation(), Position: 20, Duration: 100})
	waitFor(t, func() bool { return ctrl.Status().State == StatePaused })
}

// Status listeners fire from both the dispatch goroutine and command callers;
// the controller must never run the callback concurrently with itself.
func TestStateListenerInvocationsSerialized(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	eng := newFakeEngine()

	var active atomic.Int32
	var overlapped atomic.Bool
	ctrl := New(eng, store, logging.NewNop(), WithStateListener(func(Status) {
		if active.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
	}))
	t.Cleanup(func() { ctrl.Close() })

	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")
	if err := ctrl.Open(filepath.Join(dir, "e1.mkv")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool { return ctrl.Status().State == StatePlaying })

	pushed := make(chan struct{})
	go func() {
		defer close(pushed)
		for i := 0; i < 50; i++ {
			eng.push(engine.Event{Kind: engine.EventPosition, Generation: eng.generation(), Position: float64(i)})
		}
	}()
	for i := 0; i < 20; i++ {
		if err := ctrl.TogglePause(); err != nil {
			t.Fatalf("TogglePause: %v", err)
		}
	}
	<-pushed

	if overlapped.Load() {
		t.Fatal("state listener invoked concurrently")
	}
}

func TestStateListenerObservesTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	eng := newFakeEngine()

	var mu sync.Mutex
	var seen []State
	ctrl := New(eng, store, logging.NewNop(), WithStateListener(func(st Status) {
		mu.Lock()
		seen = append(seen, st.State)
		mu.Unlock()
	}))
	t.Cleanup(func() { ctrl.Close() })

	dir := testsupport.WriteVideoFiles(t, t.TempDir(), "e1.mkv")
	if err := ctrl.Open(filepath.Join(dir, "e1.mkv")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.push(engine.Event{Kind: engine.EventFileLoaded, Generation: eng.generation()})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range seen {
			if s == StatePlaying {
				return true
			}
		}
		return false
	})

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != StateLoading {
		t.Fatalf("first observed state = %v, want loading", seen[0])
	}
}
