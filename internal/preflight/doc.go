// Package preflight provides readiness checks for external services
// and filesystem paths that broll depends on.
//
// The "broll doctor" command runs RunAll and renders the results next to the
// binary dependency table. The daemon logs the same results at startup but
// does not refuse to run on failure; jobs fail individually with a typed
// error if a service is down.
package preflight
