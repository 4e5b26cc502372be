// Package daemonrun hosts the daemon process lifecycle shared by `broll serve`
// and the standalone brolld binary: logger setup, startup diagnostics,
// component wiring, and signal-driven shutdown.
package daemonrun
