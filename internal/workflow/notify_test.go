package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"broll/internal/jobs"
	"broll/internal/notifications"
	"broll/internal/services"
	"broll/internal/staging"
	"broll/internal/workflow"
)

type publishedEvent struct {
	event notifications.Event
	data  notifications.Payload
}

type recordingNotifier struct {
	events chan publishedEvent
	err    error
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, data notifications.Payload) error {
	r.events <- publishedEvent{event: event, data: data}
	return r.err
}

func nextEvent(t *testing.T, n *recordingNotifier) publishedEvent {
	t.Helper()
	select {
	case ev := <-n.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no notification published")
		return publishedEvent{}
	}
}

func TestManager_NotifiesOnCompletion(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, job jobs.Job, scope *staging.Scope, report workflow.ProgressFunc) (string, error) {
		return "/out/output_" + job.ID + ".mp4", nil
	})
	h := newHarness(t, runner, workflow.Options{Workers: 1})
	notifier := &recordingNotifier{events: make(chan publishedEvent, 4)}
	h.mgr.SetNotifier(notifier)
	h.start(t)

	id := h.submit(t)
	ev := nextEvent(t, notifier)
	if ev.event != notifications.EventJobCompleted {
		t.Fatalf("expected completion event, got %s", ev.event)
	}
	if ev.data["taskID"] != id || ev.data["source"] != "clip.mp4" {
		t.Fatalf("unexpected payload %v", ev.data)
	}
	if ev.data["output"] != "/out/output_"+id+".mp4" {
		t.Fatalf("unexpected output %q", ev.data["output"])
	}
}

func TestManager_NotifiesOnFailureAndIgnoresPublishErrors(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, job jobs.Job, scope *staging.Scope, report workflow.ProgressFunc) (string, error) {
		return "", services.Wrap(services.ErrStockFetch, "stock", "search", "pexels unavailable", nil)
	})
	h := newHarness(t, runner, workflow.Options{Workers: 1})
	notifier := &recordingNotifier{events: make(chan publishedEvent, 4), err: errors.New("ntfy down")}
	h.mgr.SetNotifier(notifier)
	h.start(t)

	id := h.submit(t)
	ev := nextEvent(t, notifier)
	if ev.event != notifications.EventJobFailed {
		t.Fatalf("expected failure event, got %s", ev.event)
	}
	if ev.data["errorKind"] != services.KindStockFetch {
		t.Fatalf("expected stock_fetch kind, got %q", ev.data["errorKind"])
	}
	job := waitForTerminal(t, h.mgr, id)
	if job.Status != jobs.StatusError {
		t.Fatalf("expected error status, got %s", job.Status)
	}
}
