// Package playlist resolves a folder into an ordered sequence of playable
// files and tracks the current position within it. Next and Previous never
// wrap; boundary conditions are ordinary errors, not state transitions.
package playlist
