// Package captions holds the caption data model and the segmenter.
//
// A Caption is a {text, start, end} span in seconds. Track owns an ordered,
// concurrency-safe list of captions and re-establishes the ascending-start
// ordering after every mutation, swapping the sorted slice in a single step so
// readers never observe a partially sorted list. Segment turns word tokens from
// the speech model into captions under a fixed word-count or automatic policy.
// Style is the read-only value object consumed by the renderer.
package captions
