package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"broll/internal/jobs"
	"broll/internal/services"
	"broll/internal/staging"
	"broll/internal/workflow"
)

type runnerFunc func(ctx context.Context, job jobs.Job, scope *staging.Scope, report workflow.ProgressFunc) (string, error)

func (f runnerFunc) Run(ctx context.Context, job jobs.Job, scope *staging.Scope, report workflow.ProgressFunc) (string, error) {
	return f(ctx, job, scope, report)
}

type harness struct {
	mgr     *workflow.Manager
	store   *jobs.MemoryStore
	staging *staging.Manager
	dir     string
}

func newHarness(t *testing.T, runner workflow.Runner, opts workflow.Options) *harness {
	t.Helper()
	dir := t.TempDir()
	store := jobs.NewMemoryStore()
	stagingMgr := staging.NewManager(filepath.Join(dir, "staging"))
	mgr := workflow.NewManager(store, runner, stagingMgr, opts, nil)
	return &harness{mgr: mgr, store: store, staging: stagingMgr, dir: dir}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(h.mgr.Stop)
}

func (h *harness) upload(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func (h *harness) submit(t *testing.T) string {
	t.Helper()
	id, err := h.mgr.Submit(context.Background(), h.upload(t, fmt.Sprintf("in-%d.mp4", time.Now().UnixNano())), "clip.mp4")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return id
}

func waitForTerminal(t *testing.T, mgr *workflow.Manager, id string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := mgr.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return jobs.Job{}
}

func waitForStatus(t *testing.T, mgr *workflow.Manager, id string, want jobs.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := mgr.Status(context.Background(), id)
		if job.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
}

func TestJobRunsToCompletion(t *testing.T) {
	var h *harness
	var observed []int
	var mu sync.Mutex
	runner := runnerFunc(func(ctx context.Context, job jobs.Job, scope *staging.Scope, report workflow.ProgressFunc) (string, error) {
		if _, err := os.Stat(scope.Dir()); err != nil {
			return "", fmt.Errorf("scope missing: %w", err)
		}
		for _, p := range []int{20, 40, 30, 60, 80, 95} {
			report("stage", p)
			snap, _ := h.mgr.Status(ctx, job.ID)
			mu.Lock()
			observed = append(observed, snap.Progress)
			mu.Unlock()
		}
		return "/out/output_" + job.ID + ".mp4", nil
	})
	h = newHarness(t, runner, workflow.Options{Workers: 1})
	h.start(t)

	id := h.submit(t)
	final := waitForTerminal(t, h.mgr, id)
	if final.Status != jobs.StatusCompleted || final.Progress != 100 || final.Output != "/out/output_"+id+".mp4" {
		t.Fatalf("unexpected final state %+v", final)
	}
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(observed); i++ {
		if observed[i] < observed[i-1] {
			t.Fatalf("progress went backwards: %v", observed)
		}
	}
	if observed[2] != 40 {
		t.Fatalf("late lower checkpoint should not lower progress: %v", observed)
	}

	out, err := h.mgr.Output(context.Background(), id)
	if err != nil || out != final.Output {
		t.Fatalf("Output = %q, %v", out, err)
	}
	again, _ := h.mgr.Status(context.Background(), id)
	if again != final {
		t.Fatalf("terminal snapshot changed: %+v vs %+v", again, final)
	}
	if h.staging.Active() != 0 {
		t.Fatal("job scope not released")
	}
	if _, err := os.Stat(filepath.Join(h.staging.Root(), "job-"+id)); !os.IsNotExist(err) {
		t.Fatal("job scope directory left behind")
	}
}

func TestSubmitValidatesSource(t *testing.T) {
	h := newHarness(t, runnerFunc(nil), workflow.Options{})
	empty := filepath.Join(h.dir, "empty.mp4")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"", filepath.Join(h.dir, "missing.mp4"), empty, h.dir} {
		if _, err := h.mgr.Submit(context.Background(), path, "x.mp4"); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Submit(%q) = %v, want ErrValidation", path, err)
		}
	}
	if all, _ := h.mgr.List(context.Background()); len(all) != 0 {
		t.Fatalf("rejected submissions created jobs: %+v", all)
	}
}

func TestConcurrentSubmitsGetUniqueIDs(t *testing.T) {
	h := newHarness(t, runnerFunc(nil), workflow.Options{QueueCapacity: 64})
	source := h.upload(t, "shared.mp4")
	const n = 50
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := h.mgr.Submit(context.Background(), source, "shared.mp4")
			if err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)
	seen := make(map[string]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d ids, got %d", n, len(seen))
	}
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	h := newHarness(t, runnerFunc(nil), workflow.Options{QueueCapacity: 1})
	h.submit(t)
	_, err := h.mgr.Submit(context.Background(), h.upload(t, "second.mp4"), "second.mp4")
	if !errors.Is(err, services.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	failed, _ := h.mgr.List(context.Background(), jobs.StatusError)
	if len(failed) != 1 || failed[0].Error != "queue full" || failed[0].ErrorKind != services.KindQueueFull {
		t.Fatalf("rejected job not recorded as error: %+v", failed)
	}
}

func TestPipelineErrorFailsJob(t *testing.T) {
	runner := runnerFunc(func(_ context.Context, _ jobs.Job, _ *staging.Scope, report workflow.ProgressFunc) (string, error) {
		report(workflow.StageExtract, workflow.ProgressExtracted)
		return "", services.Wrap(services.ErrTranscription, "transcribe", "engine", "speech recognition failed", errors.New("exit 1"))
	})
	h := newHarness(t, runner, workflow.Options{Workers: 1})
	h.start(t)
	id := h.submit(t)
	final := waitForTerminal(t, h.mgr, id)
	if final.Status != jobs.StatusError || final.ErrorKind != services.KindTranscription || final.Error == "" || final.Output != "" {
		t.Fatalf("unexpected final state %+v", final)
	}
	if final.Progress != workflow.ProgressExtracted {
		t.Fatalf("progress should stay at last checkpoint, got %d", final.Progress)
	}
	if _, err := h.mgr.Output(context.Background(), id); !errors.Is(err, services.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestPanicFailsJob(t *testing.T) {
	runner := runnerFunc(func(context.Context, jobs.Job, *staging.Scope, workflow.ProgressFunc) (string, error) {
		panic("boom")
	})
	h := newHarness(t, runner, workflow.Options{Workers: 1})
	h.start(t)
	final := waitForTerminal(t, h.mgr, h.submit(t))
	if final.Status != jobs.StatusError {
		t.Fatalf("panic should fail the job, got %+v", final)
	}
	if h.staging.Active() != 0 {
		t.Fatal("scope not released after panic")
	}
}

func blockingRunner(started chan<- string) runnerFunc {
	return func(ctx context.Context, job jobs.Job, _ *staging.Scope, _ workflow.ProgressFunc) (string, error) {
		if started != nil {
			started <- job.ID
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
}

func TestCancelProcessingJob(t *testing.T) {
	started := make(chan string, 1)
	h := newHarness(t, blockingRunner(started), workflow.Options{Workers: 1})
	h.start(t)
	id := h.submit(t)
	<-started
	if err := h.mgr.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	final := waitForTerminal(t, h.mgr, id)
	if final.Status != jobs.StatusError || final.ErrorKind != services.KindCancelled {
		t.Fatalf("unexpected final state %+v", final)
	}
	if err := h.mgr.Cancel(context.Background(), id); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("cancelling a finished job should fail with ErrValidation, got %v", err)
	}
	if err := h.mgr.Cancel(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelQueuedJobNeverRuns(t *testing.T) {
	var calls int
	var mu sync.Mutex
	runner := runnerFunc(func(context.Context, jobs.Job, *staging.Scope, workflow.ProgressFunc) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "out.mp4", nil
	})
	h := newHarness(t, runner, workflow.Options{Workers: 1})
	id := h.submit(t)
	if err := h.mgr.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	h.start(t)
	next := h.submit(t)
	waitForTerminal(t, h.mgr, next)

	cancelled, _ := h.mgr.Status(context.Background(), id)
	if cancelled.Status != jobs.StatusError || cancelled.ErrorKind != services.KindCancelled {
		t.Fatalf("unexpected cancelled state %+v", cancelled)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("cancelled job should not run, runner called %d times", calls)
	}
}

func TestJobTimeout(t *testing.T) {
	h := newHarness(t, blockingRunner(nil), workflow.Options{Workers: 1, JobTimeout: 50 * time.Millisecond})
	h.start(t)
	final := waitForTerminal(t, h.mgr, h.submit(t))
	if final.Status != jobs.StatusError || final.ErrorKind != services.KindTimeout {
		t.Fatalf("unexpected final state %+v", final)
	}
}

func TestStopFailsUnfinishedJobs(t *testing.T) {
	started := make(chan string, 1)
	h := newHarness(t, blockingRunner(started), workflow.Options{Workers: 1})
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	running := h.submit(t)
	<-started
	waiting := h.submit(t)
	h.mgr.Stop()

	for _, id := range []string{running, waiting} {
		job, _ := h.mgr.Status(context.Background(), id)
		if job.Status != jobs.StatusError || job.ErrorKind != services.KindCancelled {
			t.Fatalf("job %s not failed at shutdown: %+v", id, job)
		}
	}
	if h.mgr.Running() {
		t.Fatal("manager still running after Stop")
	}
}

func TestSubmitRefusedAfterStop(t *testing.T) {
	h := newHarness(t, runnerFunc(func(context.Context, jobs.Job, *staging.Scope, workflow.ProgressFunc) (string, error) {
		return "", nil
	}), workflow.Options{Workers: 1})
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.mgr.Stop()

	_, err := h.mgr.Submit(context.Background(), h.upload(t, "late.mp4"), "late.mp4")
	if !errors.Is(err, services.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull after Stop, got %v", err)
	}
	queued, _ := h.mgr.List(context.Background(), jobs.StatusQueued)
	if len(queued) != 0 {
		t.Fatalf("refused submit left queued jobs: %+v", queued)
	}

	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	t.Cleanup(h.mgr.Stop)
	if _, err := h.mgr.Submit(context.Background(), h.upload(t, "again.mp4"), "again.mp4"); err != nil {
		t.Fatalf("Submit after restart: %v", err)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	h := newHarness(t, runnerFunc(nil), workflow.Options{})
	if _, err := h.mgr.Status(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := h.mgr.Output(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueuedJobIsNotReady(t *testing.T) {
	h := newHarness(t, runnerFunc(nil), workflow.Options{})
	id := h.submit(t)
	waitForStatus(t, h.mgr, id, jobs.StatusQueued)
	if _, err := h.mgr.Output(context.Background(), id); !errors.Is(err, services.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	summary, err := h.mgr.Summary(context.Background())
	if err != nil || summary.Counts[jobs.StatusQueued] != 1 || summary.Queued != 1 || summary.Running {
		t.Fatalf("unexpected summary %+v %v", summary, err)
	}
}
