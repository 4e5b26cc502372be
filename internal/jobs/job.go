package jobs

import (
	"context"
	"fmt"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var allStatuses = []Status{StatusQueued, StatusProcessing, StatusCompleted, StatusError}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// IsTerminal reports whether s can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing || to == StatusError
	case StatusProcessing:
		return to == StatusCompleted || to == StatusError
	default:
		return false
	}
}

// Job is one upload's processing record.
type Job struct {
	ID           string
	Status       Status
	Progress     int
	Stage        string
	SourcePath   string
	OriginalName string
	Output       string
	Error        string
	ErrorKind    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot returns an independent copy of j.
func (j *Job) Snapshot() Job {
	if j == nil {
		return Job{}
	}
	return *j
}

// Transition moves j to status, refusing illegal edges.
func (j *Job) Transition(to Status) error {
	if j.Status == to {
		return nil
	}
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("invalid transition: %s -> %s", j.Status, to)
	}
	j.Status = to
	return nil
}

// Store persists job records. Get returns (nil, nil) for unknown ids.
type Store interface {
	Insert(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, job Job) error
	List(ctx context.Context, statuses ...Status) ([]Job, error)
	FailActive(ctx context.Context, message, kind string) (int, error)
	Close() error
}
