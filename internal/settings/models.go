package settings

import "math"

// Skip, speed, and seek-step limits. Values outside these ranges are clamped
// on write, never rejected.
const (
	MaxSkipSeconds = 600
	MinSeekStep    = 1
	MaxSeekStep    = 300
	MinSpeed       = 0.25
	MaxSpeed       = 3.0
)

// FolderSettings is the whole-document record persisted per folder
// fingerprint: skip offsets plus the per-file progress map.
type FolderSettings struct {
	FolderPath string             `json:"folder_path"`
	SkipIntro  int                `json:"skip_intro"`
	SkipOutro  int                `json:"skip_outro"`
	Progress   map[string]float64 `json:"progress"`
}

// DefaultFolderSettings returns the record used when a folder has never been
// seen or its stored document cannot be read.
func DefaultFolderSettings(folderPath string) FolderSettings {
	return FolderSettings{
		FolderPath: folderPath,
		Progress:   map[string]float64{},
	}
}

// Clone returns a deep copy so cached documents never alias caller state.
func (f FolderSettings) Clone() FolderSettings {
	out := f
	out.Progress = make(map[string]float64, len(f.Progress))
	for name, pct := range f.Progress {
		out.Progress[name] = pct
	}
	return out
}

func (f *FolderSettings) clamp() {
	f.SkipIntro = clampInt(f.SkipIntro, 0, MaxSkipSeconds)
	f.SkipOutro = clampInt(f.SkipOutro, 0, MaxSkipSeconds)
	if f.Progress == nil {
		f.Progress = map[string]float64{}
	}
	for name, pct := range f.Progress {
		f.Progress[name] = clampFloat(pct, 0, 100)
	}
}

// GlobalSettings is the process-wide singleton record.
type GlobalSettings struct {
	Speed    float64 `json:"speed"`
	SeekStep int     `json:"seek_step"`
}

// DefaultGlobalSettings returns the global record defaults.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{Speed: 1.0, SeekStep: 10}
}

func (g *GlobalSettings) clamp() {
	g.Speed = clampFloat(g.Speed, MinSpeed, MaxSpeed)
	g.SeekStep = clampInt(g.SeekStep, MinSeekStep, MaxSeekStep)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// RoundProgress rounds a percentage to the single decimal the progress map
// stores.
func RoundProgress(pct float64) float64 {
	return math.Round(clampFloat(pct, 0, 100)*10) / 10
}
