// Package ffmpeg builds and runs the ffmpeg invocations the pipeline needs:
// speech audio extraction, per-clip rendering to a common frame size, and
// stream-copy concatenation of rendered clips.
//
// Argument builders are pure functions so command lines can be asserted in
// tests; Tool executes them through an injectable runner.
package ffmpeg
