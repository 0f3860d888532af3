// Package session wires the caption pipeline together and owns the caption
// track a user edits.
//
// Pipeline runs extraction, transcription, and segmentation as three stages
// whose progress composes into one 0-100 range. Session holds the source
// video, the caption track, the caption style, and the synchronizer driving
// the live overlay; it installs a pipeline result on the track only when the
// whole pipeline succeeded, so a failed attempt leaves earlier captions in
// place. Export hands the same track snapshot and style to the export
// renderer.
package session
