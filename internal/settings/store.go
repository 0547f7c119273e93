package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"playhead/internal/config"
	"playhead/internal/logging"
)

// neverAskKey is the preferences record for the default-player prompt.
const neverAskKey = "default_player_never_ask"

// Store persists folder settings, per-file progress, and global playback
// settings in SQLite. Reads go through an in-memory cache; all cache access is
// mutex-serialized so a progress save cannot race a skip-value edit.
//
// Persistence is best-effort: read failures fall back to defaults and write
// failures are logged, never propagated, so a transient I/O problem cannot
// interrupt playback.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	cache  map[string]FolderSettings // keyed by normalized folder path
	global *GlobalSettings
}

// Open initializes or connects to the settings database and verifies the schema.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		path:   dbPath,
		logger: logging.NewComponentLogger(logger, "settings"),
		cache:  make(map[string]FolderSettings),
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// LoadSettings returns the settings for the folder containing filePath. It
// never fails: cache hit, then database, then defaults.
func (s *Store) LoadSettings(ctx context.Context, filePath string) FolderSettings {
	folder := FolderOf(filePath)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFolderLocked(ctx, folder)
}

// FolderSettingsFor is LoadSettings keyed by folder rather than file path.
func (s *Store) FolderSettingsFor(ctx context.Context, folderPath string) FolderSettings {
	folder := NormalizeFolder(folderPath)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFolderLocked(ctx, folder)
}

func (s *Store) loadFolderLocked(ctx context.Context, folder string) FolderSettings {
	if cached, ok := s.cache[folder]; ok {
		return cached.Clone()
	}

	loaded := DefaultFolderSettings(folder)
	var document string
	row := s.db.QueryRowContext(ctx,
		`SELECT document FROM folder_settings WHERE fingerprint = ?`, Fingerprint(folder))
	switch err := row.Scan(&document); {
	case err == nil:
		if unmarshalErr := json.Unmarshal([]byte(document), &loaded); unmarshalErr != nil {
			s.logger.Warn("corrupt folder settings document, using defaults",
				logging.Args(logging.String(logging.FieldFolder, folder), logging.Error(unmarshalErr))...)
			loaded = DefaultFolderSettings(folder)
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		s.logger.Warn("read folder settings failed, using defaults",
			logging.Args(logging.String(logging.FieldFolder, folder), logging.Error(err))...)
	}

	loaded.FolderPath = folder
	loaded.clamp()
	s.cache[folder] = loaded.Clone()
	return loaded
}

// SaveSettings replaces the whole folder document for the folder containing
// filePath. Write errors are logged and swallowed; the cache keeps the new
// value either way so the session stays self-consistent.
func (s *Store) SaveSettings(ctx context.Context, filePath string, fs FolderSettings) {
	folder := FolderOf(filePath)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveFolderLocked(ctx, folder, fs)
}

func (s *Store) saveFolderLocked(ctx context.Context, folder string, fs FolderSettings) {
	fs.FolderPath = folder
	fs.clamp()
	s.cache[folder] = fs.Clone()

	document, err := json.Marshal(fs)
	if err != nil {
		s.logger.Warn("marshal folder settings failed",
			logging.Args(logging.String(logging.FieldFolder, folder), logging.Error(err))...)
		return
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO folder_settings (fingerprint, folder_path, document, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(fingerprint) DO UPDATE SET folder_path = excluded.folder_path,
             document = excluded.document, updated_at = excluded.updated_at`,
		Fingerprint(folder), folder, string(document), now)
	if err != nil {
		s.logger.Warn("write folder settings failed",
			logging.Args(logging.String(logging.FieldFolder, folder), logging.Error(err))...)
	}
}

// SaveProgress records the playback percentage for a single file, rounded to
// one decimal. Percentages at or below 1 are noise from a barely opened file
// and are not persisted.
func (s *Store) SaveProgress(ctx context.Context, filePath string, percentage float64) {
	if percentage <= 1 {
		return
	}
	folder := FolderOf(filePath)
	name := filepath.Base(filePath)

	s.mu.Lock()
	defer s.mu.Unlock()
	fs := s.loadFolderLocked(ctx, folder)
	fs.Progress[name] = RoundProgress(percentage)
	s.saveFolderLocked(ctx, folder, fs)
}

// Progress returns the saved percentage for a file, or 0 when unknown.
func (s *Store) Progress(ctx context.Context, filePath string) float64 {
	folder := FolderOf(filePath)
	name := filepath.Base(filePath)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFolderLocked(ctx, folder).Progress[name]
}

// AllProgress returns the filename-to-percentage map for a folder.
func (s *Store) AllProgress(ctx context.Context, folderPath string) map[string]float64 {
	folder := NormalizeFolder(folderPath)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFolderLocked(ctx, folder).Progress
}

// ClearAll removes every persisted folder record, invalidates the cache, and
// returns the number of records removed.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM folder_settings`)
	if err != nil {
		return 0, fmt.Errorf("clear folder settings: %w", err)
	}
	s.cache = make(map[string]FolderSettings)
	return res.RowsAffected()
}

// Global returns the singleton global settings, loading them once.
func (s *Store) Global(ctx context.Context) GlobalSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalLocked(ctx)
}

func (s *Store) globalLocked(ctx context.Context) GlobalSettings {
	if s.global != nil {
		return *s.global
	}

	loaded := DefaultGlobalSettings()
	var document string
	row := s.db.QueryRowContext(ctx, `SELECT document FROM global_settings WHERE id = 1`)
	switch err := row.Scan(&document); {
	case err == nil:
		if unmarshalErr := json.Unmarshal([]byte(document), &loaded); unmarshalErr != nil {
			s.logger.Warn("corrupt global settings document, using defaults", logging.Args(logging.Error(unmarshalErr))...)
			loaded = DefaultGlobalSettings()
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		s.logger.Warn("read global settings failed, using defaults", logging.Args(logging.Error(err))...)
	}

	loaded.clamp()
	s.global = &loaded
	return loaded
}

// UpdateGlobal applies mutate to the global settings, clamps, and persists the
// result immediately.
func (s *Store) UpdateGlobal(ctx context.Context, mutate func(*GlobalSettings)) GlobalSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.globalLocked(ctx)
	if mutate != nil {
		mutate(&current)
	}
	current.clamp()
	s.global = &current

	document, err := json.Marshal(current)
	if err != nil {
		s.logger.Warn("marshal global settings failed", logging.Args(logging.Error(err))...)
		return current
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO global_settings (id, document, updated_at) VALUES (1, ?, ?)
         ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		string(document), now)
	if err != nil {
		s.logger.Warn("write global settings failed", logging.Args(logging.Error(err))...)
	}
	return current
}

// NeverAskDefaultPlayer reports whether the user opted out of the
// default-player prompt.
func (s *Store) NeverAskDefaultPlayer(ctx context.Context) bool {
	var value string
	row := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, neverAskKey)
	if err := row.Scan(&value); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("read preference failed", logging.Args(logging.Error(err))...)
		}
		return false
	}
	return value == "true"
}

// SetNeverAskDefaultPlayer records the default-player prompt opt-out.
func (s *Store) SetNeverAskDefaultPlayer(ctx context.Context, never bool) {
	value := "false"
	if never {
		value = "true"
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		neverAskKey, value, now)
	if err != nil {
		s.logger.Warn("write preference failed", logging.Args(logging.Error(err))...)
	}
}

// FolderCount returns the number of persisted folder records.
func (s *Store) FolderCount(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM folder_settings`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count folder settings: %w", err)
	}
	return count, nil
}
