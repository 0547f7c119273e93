package settings_test

import (
	"context"
	"path/filepath"
	"testing"

	"playhead/internal/settings"
	"playhead/internal/testsupport"
)

func TestSaveSettingsRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "season1", "ep01.mkv")
	saved := settings.DefaultFolderSettings(settings.FolderOf(file))
	saved.SkipIntro = 90
	saved.SkipOutro = 30
	saved.Progress["ep01.mkv"] = 42.5
	store.SaveSettings(ctx, file, saved)

	loaded := store.LoadSettings(ctx, file)
	if loaded.SkipIntro != 90 || loaded.SkipOutro != 30 {
		t.Fatalf("skip values not round-tripped: %+v", loaded)
	}
	if loaded.Progress["ep01.mkv"] != 42.5 {
		t.Fatalf("progress not round-tripped: %+v", loaded.Progress)
	}
	if loaded.FolderPath != settings.FolderOf(file) {
		t.Fatalf("folder path mismatch: %q", loaded.FolderPath)
	}
}

func TestRoundTripSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "show", "ep02.mkv")

	first := testsupport.MustOpenStore(t, cfg)
	saved := settings.DefaultFolderSettings(settings.FolderOf(file))
	saved.SkipIntro = 45
	first.SaveSettings(ctx, file, saved)
	if err := first.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	second := testsupport.MustOpenStore(t, cfg)
	if got := second.LoadSettings(ctx, file).SkipIntro; got != 45 {
		t.Fatalf("expected skip intro 45 after reopen, got %d", got)
	}
}

func TestSaveSettingsClampsOutOfRangeValues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "a.mkv")
	saved := settings.DefaultFolderSettings(settings.FolderOf(file))
	saved.SkipIntro = 10_000
	saved.SkipOutro = -5
	store.SaveSettings(ctx, file, saved)

	loaded := store.LoadSettings(ctx, file)
	if loaded.SkipIntro != settings.MaxSkipSeconds {
		t.Fatalf("skip intro not clamped: %d", loaded.SkipIntro)
	}
	if loaded.SkipOutro != 0 {
		t.Fatalf("skip outro not clamped: %d", loaded.SkipOutro)
	}
}

func TestSaveProgressRoundsAndIgnoresNoise(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "movie.mp4")

	store.SaveProgress(ctx, file, 0.4)
	if got := store.Progress(ctx, file); got != 0 {
		t.Fatalf("noise progress persisted: %v", got)
	}
	store.SaveProgress(ctx, file, 1.0)
	if got := store.Progress(ctx, file); got != 0 {
		t.Fatalf("progress of exactly 1%% persisted: %v", got)
	}

	store.SaveProgress(ctx, file, 37.26)
	if got := store.Progress(ctx, file); got != 37.3 {
		t.Fatalf("expected rounded 37.3, got %v", got)
	}
}

func TestProgressUnknownFileIsZero(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if got := store.Progress(context.Background(), "/nowhere/never.mkv"); got != 0 {
		t.Fatalf("expected 0 for unknown file, got %v", got)
	}
}

func TestAllProgressReturnsFolderMap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dir := t.TempDir()
	store.SaveProgress(ctx, filepath.Join(dir, "ep01.mkv"), 12.0)
	store.SaveProgress(ctx, filepath.Join(dir, "ep02.mkv"), 98.5)

	all := store.AllProgress(ctx, dir)
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %v", all)
	}
	if all["ep01.mkv"] != 12.0 || all["ep02.mkv"] != 98.5 {
		t.Fatalf("unexpected progress map: %v", all)
	}
}

func TestClearAllRemovesRecordsAndCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dirA := t.TempDir()
	dirB := t.TempDir()
	store.SaveProgress(ctx, filepath.Join(dirA, "a.mkv"), 50)
	store.SaveProgress(ctx, filepath.Join(dirB, "b.mkv"), 60)

	removed, err := store.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if got := store.Progress(ctx, filepath.Join(dirA, "a.mkv")); got != 0 {
		t.Fatalf("cache not invalidated, got %v", got)
	}
	count, err := store.FolderCount(ctx)
	if err != nil {
		t.Fatalf("FolderCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty table, got %d", count)
	}
}

func TestGlobalSettingsDefaultsAndUpdate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	global := store.Global(ctx)
	if global.Speed != 1.0 || global.SeekStep != 10 {
		t.Fatalf("unexpected defaults: %+v", global)
	}

	updated := store.UpdateGlobal(ctx, func(g *settings.GlobalSettings) {
		g.Speed = 9.0 // above max, clamps to 3.0
		g.SeekStep = 0
	})
	if updated.Speed != settings.MaxSpeed {
		t.Fatalf("speed not clamped: %v", updated.Speed)
	}
	if updated.SeekStep != settings.MinSeekStep {
		t.Fatalf("seek step not clamped: %v", updated.SeekStep)
	}

	if again := store.Global(ctx); again != updated {
		t.Fatalf("global cache mismatch: %+v vs %+v", again, updated)
	}
}

func TestNeverAskDefaultPlayerFlag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if store.NeverAskDefaultPlayer(ctx) {
		t.Fatal("flag should default to false")
	}
	store.SetNeverAskDefaultPlayer(ctx, true)
	if !store.NeverAskDefaultPlayer(ctx) {
		t.Fatal("flag not persisted")
	}
	store.SetNeverAskDefaultPlayer(ctx, false)
	if store.NeverAskDefaultPlayer(ctx) {
		t.Fatal("flag not cleared")
	}
}
