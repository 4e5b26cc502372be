package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"broll/internal/jobs"
	"broll/internal/logging"
	"broll/internal/notifications"
	"broll/internal/services"
	"broll/internal/staging"
)

const (
	defaultWorkers       = 2
	defaultQueueCapacity = 32

	submitStage = "submit"
)

// errTerminal marks attempts to modify a finished job.
var errTerminal = errors.New("job already finished")

// ProgressFunc records that a job reached percent while in stage.
type ProgressFunc func(stage string, percent int)

// Runner executes one job and returns the output file path.
type Runner interface {
	Run(ctx context.Context, job jobs.Job, scope *staging.Scope, report ProgressFunc) (string, error)
}

// Options tunes the worker pool.
type Options struct {
	Workers       int
	QueueCapacity int
	JobTimeout    time.Duration
}

// Manager coordinates job admission, execution, and state.
type Manager struct {
	store    jobs.Store
	runner   Runner
	staging  *staging.Manager
	notifier notifications.Service
	logger   *slog.Logger
	opts     Options
	newID    func() string

	queue chan string

	// mu serializes every read-modify-write of job records.
	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	// runMu guards the run state and is held across admission so a
	// submit cannot slip in behind Stop's final sweep.
	runMu   sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a Manager. Jobs are not executed until Start.
func NewManager(store jobs.Store, runner Runner, stagingMgr *staging.Manager, opts Options, logger *slog.Logger) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = defaultQueueCapacity
	}
	return &Manager{
		store:    store,
		runner:   runner,
		staging:  stagingMgr,
		notifier: notifications.NewService(nil),
		logger:   logging.NewComponentLogger(logger, "workflow-manager"),
		opts:     opts,
		newID:    uuid.NewString,
		queue:    make(chan string, opts.QueueCapacity),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SetNotifier installs the service that receives job completion and failure
// events. A nil service disables notifications.
func (m *Manager) SetNotifier(n notifications.Service) {
	if n == nil {
		n = notifications.NewService(nil)
	}
	m.notifier = n
}

// Submit admits sourcePath as a new job and returns its id immediately. The
// source must be a readable, non-empty regular file. Jobs submitted before
// Start wait in the queue; once Stop has run, Submit refuses with
// ErrQueueFull until the next Start.
func (m *Manager) Submit(ctx context.Context, sourcePath, originalName string) (string, error) {
	if err := checkSource(sourcePath); err != nil {
		return "", err
	}
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.stopped {
		return "", services.Wrap(services.ErrQueueFull, submitStage, "enqueue", "workflow stopped", nil)
	}
	now := time.Now().UTC()
	job := jobs.Job{
		ID:           m.newID(),
		Status:       jobs.StatusQueued,
		SourcePath:   sourcePath,
		OriginalName: strings.TrimSpace(originalName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	m.mu.Lock()
	err := m.store.Insert(ctx, job)
	m.mu.Unlock()
	if err != nil {
		return "", services.Wrap(services.ErrTransient, submitStage, "insert job", "could not record job", err)
	}

	logger := logging.WithContext(services.WithJobID(ctx, job.ID), m.logger)
	select {
	case m.queue <- job.ID:
	default:
		full := services.Wrap(services.ErrQueueFull, submitStage, "enqueue", fmt.Sprintf("queue full (%d jobs waiting)", cap(m.queue)), nil)
		if _, applyErr := m.apply(context.WithoutCancel(ctx), job.ID, func(j *jobs.Job) error {
			return setFailed(j, "queue full", services.KindQueueFull)
		}); applyErr != nil {
			logger.Error("failed to record rejected job", logging.Error(applyErr))
		}
		logging.WarnWithContext(logger, "job rejected", "job_rejected",
			logging.Int("queue_capacity", cap(m.queue)),
			logging.String(logging.FieldImpact, "upload was not processed"),
			logging.String(logging.FieldErrorHint, "retry later or raise workflow.queue_capacity"),
		)
		return "", full
	}

	logger.Info("job queued",
		logging.String(logging.FieldEventType, "job_queued"),
		logging.String("source", sourcePath),
		logging.String("original_name", job.OriginalName),
	)
	return job.ID, nil
}

func checkSource(path string) error {
	if strings.TrimSpace(path) == "" {
		return services.Wrap(services.ErrValidation, submitStage, "check source", "source path required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, submitStage, "check source", "source unavailable", err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return services.Wrap(services.ErrValidation, submitStage, "check source", fmt.Sprintf("%s is not a non-empty file", path), nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, submitStage, "check source", "source unreadable", err)
	}
	return f.Close()
}

// Status returns a snapshot of job id.
func (m *Manager) Status(ctx context.Context, id string) (jobs.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return jobs.Job{}, services.Wrap(services.ErrNotFound, "status", "", fmt.Sprintf("job %s", id), nil)
	}
	return job.Snapshot(), nil
}

// Output returns the output path of a completed job.
func (m *Manager) Output(ctx context.Context, id string) (string, error) {
	job, err := m.Status(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Status != jobs.StatusCompleted || job.Output == "" {
		return "", services.Wrap(services.ErrNotReady, "output", "", fmt.Sprintf("job %s is %s", id, job.Status), nil)
	}
	return job.Output, nil
}

// Cancel stops job id. Queued jobs fail immediately; processing jobs fail
// once their pipeline observes the cancellation. Finished jobs are refused
// with ErrValidation.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "cancel", "", fmt.Sprintf("job %s", id), nil)
	}
	if job.Status.IsTerminal() {
		return services.Wrap(services.ErrValidation, "cancel", "", errTerminal.Error(), nil)
	}
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		m.logger.Info("job cancellation requested",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldEventType, "job_cancel_requested"),
		)
		return nil
	}
	if err := m.mutateLocked(ctx, job, func(j *jobs.Job) error {
		return setFailed(j, "job cancelled", services.KindCancelled)
	}); err != nil {
		return err
	}
	m.logger.Info("queued job cancelled",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	return nil
}

// List returns snapshots of every job, oldest first.
func (m *Manager) List(ctx context.Context, statuses ...jobs.Status) ([]jobs.Job, error) {
	return m.store.List(ctx, statuses...)
}

// apply loads job id, runs fn on it, and persists the result. Terminal jobs
// are refused with errTerminal. Progress never decreases.
func (m *Manager) apply(ctx context.Context, id string, fn func(*jobs.Job) error) (jobs.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return jobs.Job{}, services.Wrap(services.ErrNotFound, "apply", "", fmt.Sprintf("job %s", id), nil)
	}
	if err := m.mutateLocked(ctx, job, fn); err != nil {
		return job.Snapshot(), err
	}
	return job.Snapshot(), nil
}

func (m *Manager) mutateLocked(ctx context.Context, job *jobs.Job, fn func(*jobs.Job) error) error {
	if job.Status.IsTerminal() {
		return errTerminal
	}
	before := job.Snapshot()
	if err := fn(job); err != nil {
		*job = before
		return err
	}
	target := job.Status
	job.Status = before.Status
	if err := job.Transition(target); err != nil {
		*job = before
		return err
	}
	job.Progress = min(max(job.Progress, before.Progress, 0), 100)
	job.UpdatedAt = time.Now().UTC()
	if err := m.store.Update(ctx, *job); err != nil {
		*job = before
		return fmt.Errorf("persist job: %w", err)
	}
	return nil
}

func setFailed(j *jobs.Job, message, kind string) error {
	j.Status = jobs.StatusError
	j.Error = strings.TrimSpace(message)
	j.ErrorKind = kind
	j.Output = ""
	return nil
}
