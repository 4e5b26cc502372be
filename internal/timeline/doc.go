// Package timeline assembles and encodes the enriched video.
//
// Every transcript segment becomes exactly one Clip. A clip either replays
// the original footage for the segment or shows a downloaded stock clip over
// the original audio for the same range, so the concatenated output always
// carries the full, unaltered soundtrack. The Assembler decides per segment
// (through a Policy) and resolves stock footage concurrently; the Encoder
// renders clips with ffmpeg and joins them.
package timeline
