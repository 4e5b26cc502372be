// Package transcript turns an extracted audio track into ordered, timed
// speech segments.
//
// Segments are produced by a pluggable Transcriber (WhisperX in production)
// and are returned exactly as the engine emitted them: no merging, splitting,
// or re-timing. Their boundaries define the clip boundaries of the final
// timeline.
package transcript
