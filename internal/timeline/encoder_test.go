package timeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"broll/internal/media/ffmpeg"
	"broll/internal/services"
	"broll/internal/timeline"
	"broll/internal/transcript"
)

type recordingRenderer struct {
	specs     []ffmpeg.RenderSpec
	concatIn  []string
	concatOut string
	renderErr error
	concatErr error
}

func (r *recordingRenderer) Render(_ context.Context, spec ffmpeg.RenderSpec) error {
	r.specs = append(r.specs, spec)
	return r.renderErr
}

func (r *recordingRenderer) Concat(_ context.Context, clips []string, _ string, output string) error {
	r.concatIn = append([]string(nil), clips...)
	r.concatOut = output
	if r.concatErr != nil {
		_ = os.WriteFile(output, []byte("partial"), 0o644)
		return r.concatErr
	}
	return os.WriteFile(output, []byte("video"), 0o644)
}

func sampleTimeline() timeline.Timeline {
	segments := []transcript.Segment{{Start: 0, End: 2}, {Start: 2, End: 2}, {Start: 2, End: 5}}
	return timeline.Timeline{
		Width:  1081,
		Height: 1920,
		Clips: []timeline.Clip{
			timeline.StockClip(0, "src.mp4", "broll_0000.mp4", segments[0], "sea", ""),
			timeline.OriginalClip(1, "src.mp4", segments[1]),
			timeline.OriginalClip(2, "src.mp4", segments[2]),
		},
	}
}

func TestEncodeRendersPlayableClipsAndPublishes(t *testing.T) {
	renderer := &recordingRenderer{}
	scope := dirScope(t.TempDir())
	dest := filepath.Join(t.TempDir(), "out", "output_1.mp4")
	enc := timeline.NewEncoder(renderer, ffmpeg.Encoding{FPS: 30, VideoCodec: "libx264"}, nil)

	if err := enc.Encode(context.Background(), sampleTimeline(), scope, dest); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(renderer.specs) != 2 {
		t.Fatalf("expected zero-length clip skipped, rendered %d", len(renderer.specs))
	}
	stockSpec := renderer.specs[0]
	if !stockSpec.Video.Loop || stockSpec.Video.Path != "broll_0000.mp4" || stockSpec.Audio.Path != "src.mp4" || stockSpec.Duration != 2 {
		t.Fatalf("unexpected stock spec %+v", stockSpec)
	}
	if stockSpec.Encoding.Width != 1080 || stockSpec.Encoding.Height != 1920 {
		t.Fatalf("expected even frame size from timeline, got %dx%d", stockSpec.Encoding.Width, stockSpec.Encoding.Height)
	}
	if renderer.specs[1].Audio.Start != 2 || renderer.specs[1].Video.Loop {
		t.Fatalf("unexpected original spec %+v", renderer.specs[1])
	}
	if len(renderer.concatIn) != 2 || renderer.concatOut == dest {
		t.Fatalf("concat should join 2 clips into a temp file, got %v -> %s", renderer.concatIn, renderer.concatOut)
	}
	if data, err := os.ReadFile(dest); err != nil || string(data) != "video" {
		t.Fatalf("output not published: %q %v", data, err)
	}
	if _, err := os.Stat(renderer.concatOut); !os.IsNotExist(err) {
		t.Fatal("temp output should be renamed away")
	}
}

func TestEncodeFailureLeavesNoOutput(t *testing.T) {
	renderer := &recordingRenderer{concatErr: errors.New("exit status 1")}
	dest := filepath.Join(t.TempDir(), "output_2.mp4")
	err := timeline.NewEncoder(renderer, ffmpeg.Encoding{}, nil).Encode(context.Background(), sampleTimeline(), dirScope(t.TempDir()), dest)
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("no output expected after failure")
	}
	if _, statErr := os.Stat(renderer.concatOut); !os.IsNotExist(statErr) {
		t.Fatal("partial output should be removed")
	}
}

func TestEncodeRenderFailure(t *testing.T) {
	renderer := &recordingRenderer{renderErr: errors.New("bad input")}
	err := timeline.NewEncoder(renderer, ffmpeg.Encoding{Width: 720, Height: 1280}, nil).
		Encode(context.Background(), sampleTimeline(), dirScope(t.TempDir()), filepath.Join(t.TempDir(), "o.mp4"))
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
	if len(renderer.concatIn) != 0 {
		t.Fatal("concat should not run after a render failure")
	}
}

func TestEncodeRequiresFrameSize(t *testing.T) {
	tl := sampleTimeline()
	tl.Width, tl.Height = 0, 0
	err := timeline.NewEncoder(&recordingRenderer{}, ffmpeg.Encoding{}, nil).
		Encode(context.Background(), tl, dirScope(t.TempDir()), filepath.Join(t.TempDir(), "o.mp4"))
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}
