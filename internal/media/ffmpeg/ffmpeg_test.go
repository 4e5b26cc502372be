package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type recorder struct {
	calls [][]string
	err   error
}

func (r *recorder) run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.err
}

func TestExtractAudioArgs(t *testing.T) {
	rec := &recorder{}
	tool := New("", WithRunner(rec.run))
	if err := tool.ExtractAudio(context.Background(), "/in.mp4", "/out.wav"); err != nil {
		t.Fatalf("ExtractAudio returned error: %v", err)
	}
	got := strings.Join(rec.calls[0], " ")
	for _, want := range []string{"ffmpeg ", "-i /in.mp4", "-ac 1", "-ar 16000", "-c:a pcm_s16le", "/out.wav"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestRenderArgsStockClipLoopsAndDubs(t *testing.T) {
	spec := RenderSpec{
		Video:    Input{Path: "/stage/broll_0001.mp4", Loop: true},
		Audio:    Input{Path: "/up/source.mp4", Start: 3.25},
		Duration: 2.5,
		Output:   "/stage/clip_0001.mp4",
		Encoding: Encoding{Width: 1080, Height: 1920, FPS: 30, Preset: "veryfast"},
	}
	args := RenderArgs(spec)
	joined := strings.Join(args, " ")

	loopIdx := slices.Index(args, "-stream_loop")
	videoIdx := slices.Index(args, "/stage/broll_0001.mp4")
	if loopIdx < 0 || loopIdx > videoIdx {
		t.Fatalf("expected -stream_loop before stock input, got %q", joined)
	}
	for _, want := range []string{
		"-ss 3.250 -t 2.500 -i /up/source.mp4",
		"scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920",
		"-map [v] -map 1:a:0",
		"-c:v libx264 -preset veryfast",
		"-c:a aac",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
	if args[len(args)-1] != "/stage/clip_0001.mp4" {
		t.Fatalf("expected output last, got %q", args[len(args)-1])
	}
}

func TestRenderArgsOriginalClipDoesNotLoop(t *testing.T) {
	spec := RenderSpec{
		Video:    Input{Path: "/src.mp4", Start: 1},
		Audio:    Input{Path: "/src.mp4", Start: 1},
		Duration: 1,
		Output:   "/o.mp4",
		Encoding: Encoding{Width: 640, Height: 360},
	}
	args := RenderArgs(spec)
	if slices.Contains(args, "-stream_loop") {
		t.Fatalf("original clip must not loop: %v", args)
	}
	if !strings.Contains(strings.Join(args, " "), "fps=30") {
		t.Fatalf("expected default fps: %v", args)
	}
}

func TestRenderValidates(t *testing.T) {
	rec := &recorder{}
	tool := New("ffmpeg", WithRunner(rec.run))
	err := tool.Render(context.Background(), RenderSpec{Video: Input{Path: "/a"}, Audio: Input{Path: "/b"}, Output: "/c", Duration: 0, Encoding: Encoding{Width: 1, Height: 1}})
	if err == nil {
		t.Fatal("expected validation error for zero duration")
	}
	if len(rec.calls) != 0 {
		t.Fatal("ffmpeg must not run for invalid spec")
	}
}

func TestConcatWritesListAndRuns(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	tool := New("ffmpeg", WithRunner(rec.run))
	list := filepath.Join(dir, "concat.txt")
	clips := []string{"/a/clip_0000.mp4", "/a/it's.mp4"}
	if err := tool.Concat(context.Background(), clips, list, "/out/final.mp4"); err != nil {
		t.Fatalf("Concat returned error: %v", err)
	}
	data, err := os.ReadFile(list)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	want := "file '/a/clip_0000.mp4'\nfile '/a/it'\\''s.mp4'\n"
	if string(data) != want {
		t.Fatalf("unexpected list %q", data)
	}
	joined := strings.Join(rec.calls[0], " ")
	if !strings.Contains(joined, "-f concat -safe 0 -i "+list+" -c copy") {
		t.Fatalf("unexpected concat args %q", joined)
	}
}

func TestConcatErrors(t *testing.T) {
	tool := New("ffmpeg", WithRunner((&recorder{err: errors.New("exit 1")}).run))
	if err := tool.Concat(context.Background(), nil, "/x", "/y"); err == nil {
		t.Fatal("expected error for no clips")
	}
	if err := tool.Concat(context.Background(), []string{"/a"}, filepath.Join(t.TempDir(), "l.txt"), "/y"); err == nil {
		t.Fatal("expected runner error to propagate")
	}
}
