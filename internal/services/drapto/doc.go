// Package drapto runs the optional AV1 post-pass over exported mkv files.
//
// It exposes a Client interface with two implementations: Library, which
// calls the Drapto Go library in-process, and CLI, which shells out to the
// drapto binary and parses its --progress-json stream. Both report typed
// ProgressUpdate values so the export renderer can fold the post-pass into
// its own progress range. Tests swap commandContext for a helper process.
package drapto
