// Package notifications delivers job lifecycle events to ntfy.
//
// The workflow manager publishes an event when a job completes or fails. When
// no topic is configured NewService returns a no-op implementation, so callers
// never need to check whether alerts are enabled.
package notifications
