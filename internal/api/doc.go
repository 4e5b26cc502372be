// Package api defines the wire-format types for the HTTP surface and the
// converters that build them from internal job records.
//
// # Key Types
//
// StatusResponse: body of GET /status/{task_id}. Status is one of queued,
// processing, completed, error, or not_found for unknown ids.
//
// UploadResponse, CancelResponse, ErrorResponse: bodies of the upload,
// cancel, and error replies.
//
// HealthResponse: daemon running state, job counts, and dependency status.
//
// # Converters
//
// FromJob: jobs.Job -> StatusResponse. Server-side paths never leave the
// process; completed jobs expose only the output file name and a download URL.
//
// FromSummary and FromDependencies build the health payload.
//
// # Design Notes
//
// JSON tags are snake_case to match the upload form contract (task_id).
// Timestamps use RFC3339 with milliseconds.
package api
