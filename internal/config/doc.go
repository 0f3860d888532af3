// Package config loads, normalizes, and validates captioner configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY and HF_TOKEN. The Config type centralizes every knob the CLI
// needs: transcription backend, segmentation policy, playback timing, the
// default caption style, and export settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
