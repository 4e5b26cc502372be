// Package language normalizes user-supplied language codes for the
// transcription engine.
package language
