package api

import (
	"path/filepath"
	"strings"

	"broll/internal/deps"
	"broll/internal/jobs"
	"broll/internal/workflow"
)

// DownloadPath returns the relative URL serving job id's output.
func DownloadPath(id string) string {
	return "/download/" + id
}

// FromJob converts a job snapshot to its API representation.
func FromJob(job jobs.Job) StatusResponse {
	dto := StatusResponse{
		TaskID:   job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Stage:    strings.TrimSpace(job.Stage),
	}
	switch job.Status {
	case jobs.StatusCompleted:
		if job.Output != "" {
			dto.Output = filepath.Base(job.Output)
			dto.DownloadURL = DownloadPath(job.ID)
		}
		dto.Stage = ""
	case jobs.StatusError:
		dto.Error = job.Error
		dto.ErrorKind = job.ErrorKind
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromSummary converts a workflow summary.
func FromSummary(summary workflow.Summary) WorkflowStatus {
	counts := make(map[string]int, len(summary.Counts))
	for status, n := range summary.Counts {
		counts[string(status)] = n
	}
	return WorkflowStatus{
		Running:       summary.Running,
		Workers:       summary.Workers,
		QueueCapacity: summary.QueueCapacity,
		Queued:        summary.Queued,
		Jobs:          counts,
	}
}

// FromDependencies converts binary availability results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// HealthState derives the overall health label: "ok" when the workflow runs
// and every required dependency is present, otherwise "degraded".
func HealthState(wf WorkflowStatus, dependencies []DependencyStatus) string {
	if !wf.Running {
		return "degraded"
	}
	for _, dep := range dependencies {
		if !dep.Available && !dep.Optional {
			return "degraded"
		}
	}
	return "ok"
}
