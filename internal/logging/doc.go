// Package logging assembles the structured slog loggers used across Playhead.
//
// It owns the console and JSON handlers, centralizes level plumbing, and
// standardizes attribute keys so session, engine, and store code tag log lines
// consistently. A no-op logger is provided for tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits lines with the same shape.
package logging
