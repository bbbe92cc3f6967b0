// Package playback holds the "now playing" session: one audio source, a
// position advanced by a single background loop, and the coordinator that
// re-renders the audio when the speed changes.
//
// Every exported Session method is safe for concurrent use. Rendering runs
// outside the session lock; only the swap of the finished source takes it.
package playback
