// Package queue persists job records in SQLite.
//
// Store implements jobs.Store on top of modernc.org/sqlite with WAL mode and
// busy retries. The database is transient storage for the daemon's jobs, not
// an archive: opening it fails every record a previous process left queued
// or processing, since interrupted jobs are never resumed. Schema changes
// bump schemaVersion; users delete jobs.db to adopt the new schema.
package queue
