package queue_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"broll/internal/jobs"
	"broll/internal/queue"
	"broll/internal/services"
	"broll/internal/testsupport"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	created := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)
	job := jobs.Job{ID: "a", Status: jobs.StatusQueued, SourcePath: "/up/a.mp4", OriginalName: "a.mp4", CreatedAt: created}
	if err := store.Insert(ctx, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := store.Get(ctx, "a")
	if err != nil || got == nil {
		t.Fatalf("Get: %v %v", got, err)
	}
	if got.Status != jobs.StatusQueued || got.SourcePath != "/up/a.mp4" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected record %+v", got)
	}

	got.Status = jobs.StatusCompleted
	got.Progress = 100
	got.Output = "/out/output_a.mp4"
	got.UpdatedAt = time.Time{}
	if err := store.Update(ctx, *got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, _ := store.Get(ctx, "a")
	if again.Status != jobs.StatusCompleted || again.Progress != 100 || again.Output != "/out/output_a.mp4" {
		t.Fatalf("update not persisted: %+v", again)
	}

	missing, err := store.Get(ctx, "missing")
	if missing != nil || err != nil {
		t.Fatalf("expected nil, nil for unknown id, got %v %v", missing, err)
	}
	if err := store.Update(ctx, jobs.Job{ID: "missing", Status: jobs.StatusError}); err == nil {
		t.Fatal("expected update of unknown id to fail")
	}
}

func TestStoreListOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, st := range []jobs.Status{jobs.StatusCompleted, jobs.StatusQueued, jobs.StatusError} {
		job := jobs.Job{
			ID:         string(rune('a' + i)),
			Status:     st,
			SourcePath: "x",
			CreatedAt:  base.Add(time.Duration(i) * 100 * time.Millisecond),
		}
		if err := store.Insert(ctx, job); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	all, err := store.List(ctx)
	if err != nil || len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Fatalf("unexpected list %+v %v", all, err)
	}
	terminal, err := store.List(ctx, jobs.StatusCompleted, jobs.StatusError)
	if err != nil || len(terminal) != 2 {
		t.Fatalf("unexpected filtered list %+v %v", terminal, err)
	}
}

func TestOpenFailsLeftoverActiveJobs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")
	store, err := queue.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	for _, job := range []jobs.Job{
		{ID: "q", Status: jobs.StatusQueued, SourcePath: "x"},
		{ID: "p", Status: jobs.StatusProcessing, SourcePath: "x", Progress: 40},
		{ID: "c", Status: jobs.StatusCompleted, SourcePath: "x", Progress: 100},
	} {
		if err := store.Insert(ctx, job); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := queue.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	for _, id := range []string{"q", "p"} {
		job, _ := reopened.Get(ctx, id)
		if job.Status != jobs.StatusError || job.Error != queue.RestartReason || job.ErrorKind != services.KindCancelled {
			t.Fatalf("job %s not failed on reopen: %+v", id, job)
		}
	}
	done, _ := reopened.Get(ctx, "c")
	if done.Status != jobs.StatusCompleted || done.Error != "" {
		t.Fatalf("completed job modified: %+v", done)
	}
}
