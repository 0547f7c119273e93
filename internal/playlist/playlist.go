package playlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// videoExtensions is the fixed set of recognized playable file extensions.
var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
	".m4v":  {},
	".mpeg": {},
	".mpg":  {},
	".3gp":  {},
}

// ErrNoVideoFiles is returned when a folder contains nothing playable.
var ErrNoVideoFiles = errors.New("no video files in folder")

// ErrAtBoundary is returned by Next/Previous at the last/first entry. The
// index is left unchanged; callers decide how to surface it.
var ErrAtBoundary = errors.New("at playlist boundary")

// Playlist is the ordered sequence of files for one folder. The file list is
// immutable once opened; the current index is the only mutable field and is
// advanced only by the session controller.
type Playlist struct {
	folder  string
	files   []string
	current int
}

// New returns an empty playlist representing single-file mode (index -1).
func New() *Playlist {
	return &Playlist{current: -1}
}

// OpenFolder lists path, keeps recognized video files, and orders them with a
// case-insensitive collation. An empty result is an error and leaves no
// folder context.
func OpenFolder(path string) (*Playlist, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}

	names := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (string, bool) {
		if entry.IsDir() {
			return "", false
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		_, ok := videoExtensions[ext]
		return entry.Name(), ok
	})
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoVideoFiles, path)
	}

	collator := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(names, func(i, j int) bool {
		return collator.CompareString(names[i], names[j]) < 0
	})

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	files := lo.Map(names, func(name string, _ int) string {
		return filepath.Join(abs, name)
	})

	return &Playlist{folder: abs, files: files, current: 0}, nil
}

// IsVideoFile reports whether path has a recognized video extension.
func IsVideoFile(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Folder returns the folder the playlist was opened from, empty in
// single-file mode.
func (p *Playlist) Folder() string {
	return p.folder
}

// Files returns the ordered file paths.
func (p *Playlist) Files() []string {
	out := make([]string, len(p.files))
	copy(out, p.files)
	return out
}

// Len returns the number of entries.
func (p *Playlist) Len() int {
	return len(p.files)
}

// CurrentIndex returns the active index, -1 when no folder context exists.
func (p *Playlist) CurrentIndex() int {
	return p.current
}

// Current returns the active file path, empty when no folder context exists.
func (p *Playlist) Current() string {
	if p.current < 0 || p.current >= len(p.files) {
		return ""
	}
	return p.files[p.current]
}

// HasNext reports whether Next would advance.
func (p *Playlist) HasNext() bool {
	return p.current >= 0 && p.current < len(p.files)-1
}

// Next advances to the following entry. At the last entry it returns
// ErrAtBoundary and does not wrap.
func (p *Playlist) Next() (string, error) {
	if !p.HasNext() {
		return "", ErrAtBoundary
	}
	p.current++
	return p.files[p.current], nil
}

// Previous moves to the preceding entry. At the first entry it returns
// ErrAtBoundary and does not wrap.
func (p *Playlist) Previous() (string, error) {
	if p.current <= 0 {
		return "", ErrAtBoundary
	}
	p.current--
	return p.files[p.current], nil
}

// Jump selects an arbitrary index.
func (p *Playlist) Jump(index int) (string, error) {
	if index < 0 || index >= len(p.files) {
		return "", fmt.Errorf("index %d out of range [0,%d)", index, len(p.files))
	}
	p.current = index
	return p.files[p.current], nil
}
