// Package config loads, normalizes, and validates Playhead's TOML
// configuration.
//
// Load resolves the config path (explicit flag, ~/.config/playhead, or a
// project-local playhead.toml), overlays the file on top of Default, expands
// home-relative paths, and validates the result. Callers receive a fully
// normalized Config; nothing else in the repository re-checks these values.
package config
