// Package transcribe owns the speech model lifecycle and turns mono PCM into
// word tokens.
//
// Engine loads its model lazily exactly once; concurrent callers share the
// in-flight load and a failed load is retried on the next call. At most one
// transcription runs at a time; a second request fails fast with
// services.ErrBusy. When word timestamps are unavailable the engine retries
// once at segment granularity and spreads each segment's words evenly across
// its span, marking the result degraded.
//
// Backends live in subpackages: whisperx runs WhisperX through uvx and openai
// calls an OpenAI-compatible transcription endpoint. The cache subpackage
// persists results in sqlite.
package transcribe
