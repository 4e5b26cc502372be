package transcript_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"broll/internal/services"
	"broll/internal/transcript"
)

type stubEngine struct {
	segments []transcript.Segment
	err      error
	calls    int
}

func (s *stubEngine) Transcribe(context.Context, string, string) ([]transcript.Segment, error) {
	s.calls++
	return s.segments, s.err
}

func writeAudio(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestSegmentReturnsEngineOutputVerbatim(t *testing.T) {
	want := []transcript.Segment{
		{Start: 0, End: 1.2, Text: "first"},
		{Start: 1.2, End: 1.2, Text: ""},
		{Start: 1.2, End: 3.5, Text: "third"},
	}
	engine := &stubEngine{segments: want}
	got, err := transcript.NewSegmenter(engine, nil).Segment(context.Background(), writeAudio(t, 16), t.TempDir())
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d mutated: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestSegmentFailures(t *testing.T) {
	cases := map[string]struct {
		audio  func(t *testing.T) string
		engine *stubEngine
	}{
		"missing audio": {
			audio:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.wav") },
			engine: &stubEngine{segments: []transcript.Segment{{End: 1}}},
		},
		"empty audio": {
			audio:  func(t *testing.T) string { return writeAudio(t, 0) },
			engine: &stubEngine{segments: []transcript.Segment{{End: 1}}},
		},
		"engine error": {
			audio:  func(t *testing.T) string { return writeAudio(t, 8) },
			engine: &stubEngine{err: errors.New("model crashed")},
		},
		"no speech": {
			audio:  func(t *testing.T) string { return writeAudio(t, 8) },
			engine: &stubEngine{},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := transcript.NewSegmenter(tc.engine, nil).Segment(context.Background(), tc.audio(t), t.TempDir())
			if !errors.Is(err, services.ErrTranscription) {
				t.Fatalf("expected transcription failure, got %v", err)
			}
		})
	}
}

func TestSegmentSkipsEngineForUnreadableAudio(t *testing.T) {
	engine := &stubEngine{}
	_, _ = transcript.NewSegmenter(engine, nil).Segment(context.Background(), writeAudio(t, 0), t.TempDir())
	if engine.calls != 0 {
		t.Fatalf("engine should not run for empty audio, ran %d times", engine.calls)
	}
}

func TestSegmentReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := &stubEngine{err: context.Canceled}
	_, err := transcript.NewSegmenter(engine, nil).Segment(ctx, writeAudio(t, 8), t.TempDir())
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestTotalDuration(t *testing.T) {
	segs := []transcript.Segment{{Start: 0, End: 1.5}, {Start: 1.5, End: 1}, {Start: 2, End: 4}}
	if got := transcript.TotalDuration(segs); got != 3.5 {
		t.Fatalf("TotalDuration = %v", got)
	}
}
