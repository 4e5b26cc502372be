// Package jobs defines the job record, its status machine, and the Store
// contract the workflow manager persists through.
//
// Records move queued -> processing -> completed|error, or straight from
// queued to error. completed and error are terminal: a terminal record is
// never modified again. Stores hand out copies so callers can never mutate
// shared state.
package jobs
