// Package playback keeps the caption overlay in step with a media clock.
//
// A Synchronizer polls a Clock at a fixed interval, looks up the active
// caption with a small pre-roll bias, and publishes the resulting
// PlaybackState to subscribers. Transport commands (play, pause, seek) are
// validated against a small state machine so callers cannot, for example,
// play media that was never loaded. VirtualClock drives the same machinery
// from wall time for CLI previews and tests.
package playback
