// Package main hosts the broll CLI entrypoint and command graph.
//
// "broll serve" runs the daemon in the foreground via internal/daemonrun. The
// remaining commands are either local utilities (config, doctor, logs) or thin
// HTTP clients of a running daemon (submit, status, cancel, download).
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
