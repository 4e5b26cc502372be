// Package daemon coordinates the long-running broll process.
//
// It wires configuration, the job store, the workflow manager, and the HTTP
// surface into a single lifecycle with flock-based locking to prevent multiple
// instances. Start sweeps stale staging scopes before any worker runs so a
// crashed previous process never leaks temporary files past one restart.
//
// Keep orchestration logic here: individual workflow steps should live in their
// respective packages while the daemon focuses on startup, shutdown, and request
// routing.
package daemon
