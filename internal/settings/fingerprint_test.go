package settings_test

import (
	"testing"

	"playhead/internal/settings"
)

func TestFingerprintDeterministic(t *testing.T) {
	first := settings.Fingerprint("/media/shows/season1")
	for i := 0; i < 100; i++ {
		if got := settings.Fingerprint("/media/shows/season1"); got != first {
			t.Fatalf("fingerprint not stable: %q vs %q", got, first)
		}
	}
	if len(first) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", first)
	}
}

func TestFingerprintNormalizesPathForm(t *testing.T) {
	a := settings.Fingerprint("/media/shows/season1")
	b := settings.Fingerprint("/media/shows//season1/")
	if a != b {
		t.Fatalf("equivalent paths fingerprint differently: %q vs %q", a, b)
	}
}

func TestFingerprintDistinguishesFolders(t *testing.T) {
	if settings.Fingerprint("/media/a") == settings.Fingerprint("/media/b") {
		t.Fatal("distinct folders share a fingerprint")
	}
}

func TestFolderOf(t *testing.T) {
	if got := settings.FolderOf("/media/shows/season1/ep01.mkv"); got != "/media/shows/season1" {
		t.Fatalf("unexpected folder: %q", got)
	}
}
