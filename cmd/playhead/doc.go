// Command playhead is the CLI for the playback session controller: an
// interactive play session plus inspection commands for playlists, saved
// progress, settings, and configuration.
package main
