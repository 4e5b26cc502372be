// Package workflow runs uploaded videos through the b-roll pipeline.
//
// The Manager owns every job record: it admits uploads into a bounded queue,
// runs them on a fixed pool of workers, and is the only writer of job state.
// Each mutation goes through a single guarded read-modify-write that refuses
// to touch terminal records and never lets progress move backwards. A worker
// always finishes a job as completed or error, including on panic, timeout,
// cancellation, and shutdown.
//
// The Pipeline is the per-job stage sequence: extract audio and probe,
// transcribe, extract keywords, resolve stock footage, encode. Each stage
// reports a fixed progress checkpoint.
package workflow
