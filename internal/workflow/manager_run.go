package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"broll/internal/jobs"
	"broll/internal/logging"
	"broll/internal/notifications"
	"broll/internal/services"
)

// StopReason is recorded on jobs that were still pending at shutdown.
const StopReason = "daemon stopped"

// Start launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if m.runner == nil {
		return errors.New("workflow pipeline not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.stopped = false

	m.wg.Add(m.opts.Workers)
	for i := 0; i < m.opts.Workers; i++ {
		go m.runWorker(runCtx, i)
	}
	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.Int("workers", m.opts.Workers),
		logging.Int("queue_capacity", cap(m.queue)),
	)
	return nil
}

// Stop cancels in-flight jobs, waits for workers, and fails anything still
// queued.
func (m *Manager) Stop() {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.stopped = true
	m.cancel = nil
	m.runMu.Unlock()

	cancel()
	m.wg.Wait()

	m.mu.Lock()
	n, err := m.store.FailActive(context.Background(), StopReason, services.KindCancelled)
	m.mu.Unlock()
	if err != nil {
		m.logger.Error("failed to close out pending jobs", logging.Error(err))
	} else if n > 0 {
		m.logger.Info("pending jobs failed at shutdown", logging.Int("jobs", n))
	}
}

// Running reports whether workers are active.
func (m *Manager) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.running
}

func (m *Manager) runWorker(ctx context.Context, worker int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.queue:
			m.process(ctx, logger, id)
		}
	}
}

func (m *Manager) process(ctx context.Context, logger *slog.Logger, id string) {
	jobCtx, cancel := m.jobContext(ctx)
	defer cancel()
	jobCtx = services.WithJobID(jobCtx, id)
	logger = logging.WithContext(jobCtx, logger)

	job, ok := m.claim(jobCtx, logger, id, cancel)
	if !ok {
		return
	}
	defer m.release(id)

	start := time.Now()
	var (
		output string
		runErr error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("pipeline panic: %v", r)
				logger.Error("pipeline panicked",
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())),
					logging.String(logging.FieldEventType, "pipeline_panic"),
				)
			}
		}()
		scope, err := m.staging.Acquire(id)
		if err != nil {
			runErr = services.Wrap(services.ErrConfiguration, "staging", "acquire", "could not create job workspace", err)
			return
		}
		defer func() {
			if err := scope.Release(); err != nil {
				logging.WarnWithContext(logger, "failed to release job workspace", "staging_release_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "disk space not reclaimed until the stale sweep"),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				)
			}
		}()
		output, runErr = m.runner.Run(jobCtx, job, scope, m.reporter(jobCtx, logger, id))
	}()

	m.finish(jobCtx, logger, id, output, runErr, time.Since(start))
}

func (m *Manager) jobContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.JobTimeout > 0 {
		return context.WithTimeout(ctx, m.opts.JobTimeout)
	}
	return context.WithCancel(ctx)
}

// claim moves a queued job to processing and registers its cancel func so
// Cancel can reach it.
func (m *Manager) claim(ctx context.Context, logger *slog.Logger, id string, cancel context.CancelFunc) (jobs.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, err := m.store.Get(ctx, id)
	if err != nil || job == nil {
		logger.Error("failed to load queued job", logging.Error(err))
		return jobs.Job{}, false
	}
	if err := m.mutateLocked(ctx, job, func(j *jobs.Job) error {
		j.Status = jobs.StatusProcessing
		j.Stage = "starting"
		return nil
	}); err != nil {
		if !errors.Is(err, errTerminal) {
			logger.Error("failed to start job", logging.Error(err))
		}
		return jobs.Job{}, false
	}
	m.cancels[id] = cancel
	logger.Info("job started", logging.String(logging.FieldEventType, "job_started"))
	return job.Snapshot(), true
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.cancels, id)
	m.mu.Unlock()
}

func (m *Manager) reporter(ctx context.Context, logger *slog.Logger, id string) ProgressFunc {
	return func(stage string, percent int) {
		_, err := m.apply(context.WithoutCancel(ctx), id, func(j *jobs.Job) error {
			j.Stage = stage
			j.Progress = percent
			return nil
		})
		if err != nil && !errors.Is(err, errTerminal) {
			logger.Warn("failed to record progress",
				logging.Error(err),
				logging.String(logging.FieldEventType, "progress_update_failed"),
				logging.String(logging.FieldErrorHint, "check job store access"),
				logging.String(logging.FieldImpact, "status polls may show stale progress"),
			)
			return
		}
		logger.Debug("stage complete",
			logging.String(logging.FieldStage, stage),
			logging.Int("progress", percent),
			logging.String(logging.FieldEventType, "stage_complete"),
		)
	}
}

// finish records the terminal state. It runs for every claimed job.
func (m *Manager) finish(ctx context.Context, logger *slog.Logger, id, output string, runErr error, elapsed time.Duration) {
	persistCtx := context.WithoutCancel(ctx)
	if runErr == nil && output == "" {
		runErr = services.Wrap(services.ErrEncoding, "encode", "", "pipeline produced no output", nil)
	}
	if runErr == nil {
		job, err := m.apply(persistCtx, id, func(j *jobs.Job) error {
			j.Status = jobs.StatusCompleted
			j.Progress = ProgressComplete
			j.Stage = ""
			j.Output = output
			return nil
		})
		if err == nil {
			logger.Info("job completed",
				logging.String(logging.FieldEventType, "job_completed"),
				logging.String("output", output),
				logging.Duration("elapsed", elapsed),
			)
			m.notify(persistCtx, logger, notifications.EventJobCompleted, notifications.Payload{
				"taskID":  id,
				"source":  job.OriginalName,
				"output":  output,
				"elapsed": elapsed.Round(time.Second).String(),
			})
			return
		}
		logger.Error("failed to record completion", logging.Error(err))
		runErr = err
	}

	if ctxErr := services.FromContext(ctx, ""); ctxErr != nil && !isMarked(runErr) {
		runErr = ctxErr
	}
	kind := services.Kind(runErr)
	message := failureMessage(runErr)
	job, err := m.apply(persistCtx, id, func(j *jobs.Job) error {
		return setFailed(j, message, kind)
	})
	if err != nil {
		logger.Error("failed to record job failure", logging.Error(err))
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.String(logging.FieldErrorKind, kind),
		logging.String(logging.FieldErrorHint, services.Hint(runErr)),
		logging.String("error_message", message),
		logging.Duration("elapsed", elapsed),
		logging.Error(runErr),
	)
	m.notify(persistCtx, logger, notifications.EventJobFailed, notifications.Payload{
		"taskID":    id,
		"source":    job.OriginalName,
		"error":     message,
		"errorKind": kind,
	})
}

func (m *Manager) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, data notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, data); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.String(logging.FieldImpact, "job state is unaffected"),
			logging.Error(err),
		)
	}
}

// isMarked reports whether err already carries a cancellation or timeout
// classification.
func isMarked(err error) bool {
	return errors.Is(err, services.ErrCancelled) || errors.Is(err, services.ErrTimeout)
}

func failureMessage(err error) string {
	if err == nil {
		return "job failed without error detail"
	}
	return err.Error()
}
