// Package pexels is a small client for the Pexels video search API.
//
// Requests are paced by a token-bucket limiter and transient failures (429,
// 5xx, timeouts) are retried with the shared backoff policy.
package pexels
