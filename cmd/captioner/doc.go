// Command captioner transcribes the speech in a video into timed captions,
// edits and serializes caption tracks, previews them against the video
// timeline, and burns them into an exported video.
package main
