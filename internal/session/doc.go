// Package session implements the playback session controller: the state
// machine that turns engine events and user commands into playlist
// progression, intro/outro skipping, and progress persistence.
//
// All session state is guarded by a single mutex shared by the command API and
// the event dispatch goroutine, and every engine event is checked against the
// current load generation before it is handled. Together these give the two
// guarantees the rest of the program relies on: no handler ever observes a
// half-applied transition, and no event from a replaced file can leak into the
// file that replaced it.
package session
