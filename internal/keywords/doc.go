// Package keywords attaches b-roll search keywords to transcript segments.
//
// Segment texts are split into fixed-size batches and sent, in order, to an
// Extractor (an LLM in production). Each extractor returns batch-local
// indices which the Batcher remaps to global segment indices. The service may
// omit, duplicate, or mangle entries; the Batcher keeps the first valid
// annotation per segment and ignores the rest.
package keywords
