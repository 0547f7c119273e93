package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteVideoFiles creates empty files with the given names under dir and
// returns dir for convenience.
func WriteVideoFiles(t testing.TB, dir string, names ...string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{0x42}, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}
