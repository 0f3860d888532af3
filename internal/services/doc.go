// Package services defines shared utilities consumed by the caption pipeline
// and its external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, pipeline phases, and correlation
//     identifiers for logging.
//   - Structured error markers (decode, model load, busy, encoder, transcription)
//     plus the Wrap helper so callers can classify failures with errors.Is.
//   - UserMessage, which turns a classified failure into the short reason the
//     CLI shows to the user.
package services
