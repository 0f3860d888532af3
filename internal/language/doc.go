// Package language normalizes user and model language codes.
//
// Transcription backends want ISO 639-1 codes while containers carry ISO
// 639-2 tags and users type names like "english". Parsing goes through
// golang.org/x/text/language so BCP 47 tags such as "en-US" resolve to their
// base language.
package language
