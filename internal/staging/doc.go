// Package staging owns the per-job scratch directories under staging_dir.
//
// Each job acquires its own Scope (`job-<id>`); the worker always releases it
// when the job ends, whatever the outcome. CleanStale sweeps scopes left
// behind by a crashed process.
package staging
