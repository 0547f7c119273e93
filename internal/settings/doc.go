// Package settings persists per-folder playback settings and per-file
// progress in SQLite.
//
// Each folder is a single whole-document record keyed by a fingerprint of the
// normalized folder path: skip-intro/skip-outro offsets plus a filename to
// percentage progress map. A singleton record holds global playback settings
// (speed, seek step) and a preferences table holds the default-player prompt
// opt-out. Reads go through an in-memory cache and all access is serialized on
// one store mutex.
//
// Persistence here is deliberately best-effort. The store never surfaces read
// or write failures to playback: reads fall back to defaults and writes are
// logged and dropped. Only explicit maintenance operations (ClearAll) return
// errors.
package settings
