package workflow

import (
	"context"

	"broll/internal/jobs"
)

// Summary is a lightweight view of the workflow for health reporting.
type Summary struct {
	Running       bool
	Workers       int
	QueueCapacity int
	Queued        int
	Counts        map[jobs.Status]int
}

// Summary counts jobs by status.
func (m *Manager) Summary(ctx context.Context) (Summary, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	counts := make(map[jobs.Status]int, len(jobs.AllStatuses()))
	for _, st := range jobs.AllStatuses() {
		counts[st] = 0
	}
	for _, job := range all {
		counts[job.Status]++
	}
	return Summary{
		Running:       m.Running(),
		Workers:       m.opts.Workers,
		QueueCapacity: cap(m.queue),
		Queued:        len(m.queue),
		Counts:        counts,
	}, nil
}
