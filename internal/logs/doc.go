// Package logs reads the daemon log file for the `broll logs` command.
//
// Tail returns the last N lines, or the lines written after a byte offset and
// optionally waits for more. A Filter narrows output to one job, matching the
// job_id attribute in both console and JSON log formats.
package logs
