package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

// Insert adds job. Duplicate ids are rejected.
func (s *MemoryStore) Insert(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("insert job %s: already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// Get returns a copy of the record, or nil when unknown.
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

// Update replaces an existing record.
func (s *MemoryStore) Update(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("update job %s: not found", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// List returns records ordered by creation time, optionally filtered.
func (s *MemoryStore) List(_ context.Context, statuses ...Status) ([]Job, error) {
	filter := make(map[Status]struct{}, len(statuses))
	for _, st := range statuses {
		filter[st] = struct{}{}
	}
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if len(filter) > 0 {
			if _, ok := filter[job.Status]; !ok {
				continue
			}
		}
		out = append(out, job)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// FailActive moves every queued or processing record to error.
func (s *MemoryStore) FailActive(_ context.Context, message, kind string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	count := 0
	for id, job := range s.jobs {
		if job.Status.IsTerminal() {
			continue
		}
		job.Status = StatusError
		job.Error = message
		job.ErrorKind = kind
		job.UpdatedAt = now
		s.jobs[id] = job
		count++
	}
	return count, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
