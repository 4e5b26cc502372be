package timeline_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"broll/internal/keywords"
	"broll/internal/services"
	"broll/internal/stock"
	"broll/internal/timeline"
	"broll/internal/transcript"
)

type dirScope string

func (d dirScope) Path(name string) string { return filepath.Join(string(d), name) }

type mapResolver struct {
	mu      sync.Mutex
	matches map[string]stock.Match
	calls   []string
	err     error
}

func (m *mapResolver) Resolve(_ context.Context, keyword, _ string) (stock.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, keyword)
	if m.err != nil {
		return stock.Match{}, m.err
	}
	if match, ok := m.matches[keyword]; ok {
		return match, nil
	}
	return stock.Match{Keyword: keyword, Reason: stock.ReasonNoResults}, nil
}

type fileFetcher struct {
	fail map[string]bool
}

func (f fileFetcher) Fetch(_ context.Context, url, dest string) (int64, error) {
	if f.fail[url] {
		return 0, services.Wrap(services.ErrStockFetch, "resolve", "download", "boom", nil)
	}
	return 2, os.WriteFile(dest, []byte("ok"), 0o644)
}

func scenarioSegments() []transcript.Segment {
	return []transcript.Segment{
		{Start: 0, End: 2, Text: "hello"},
		{Start: 2, End: 5, Text: "world"},
		{Start: 5, End: 7, Text: "end"},
	}
}

func annotateAll(segments []transcript.Segment) keywords.Set {
	set := keywords.Set{}
	for i, seg := range segments {
		set[i] = keywords.Annotation{Index: i, Keyword: seg.Text, Confidence: 1}
	}
	return set
}

func TestAssembleScenario(t *testing.T) {
	segments := scenarioSegments()
	resolver := &mapResolver{matches: map[string]stock.Match{
		"hello": {Found: true, Keyword: "hello", VideoURL: "https://v/hello.mp4", ThumbnailURL: "https://i/hello.jpg"},
	}}
	scope := dirScope(t.TempDir())
	asm := timeline.NewAssembler(resolver, fileFetcher{}, timeline.AssemblerOptions{Orientation: "portrait"}, nil)

	tl, err := asm.Assemble(context.Background(), timeline.Source{Path: "/in/source.mp4", Width: 1080, Height: 1920}, segments, annotateAll(segments), scope)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(tl.Clips) != 3 || tl.StockCount() != 1 {
		t.Fatalf("unexpected timeline %+v", tl)
	}
	first := tl.Clips[0]
	if first.Source != timeline.SourceStock || first.Duration != 2 || !first.Loop {
		t.Fatalf("clip 0: %+v", first)
	}
	if first.Audio.Path != "/in/source.mp4" || first.Audio.Start != 0 || first.Audio.Duration != 2 {
		t.Fatalf("clip 0 audio should be original [0-2]: %+v", first.Audio)
	}
	if first.Video.Path != scope.Path("broll_0000.mp4") || first.Thumbnail != "https://i/hello.jpg" {
		t.Fatalf("clip 0 video: %+v", first)
	}
	if c := tl.Clips[1]; c.Source != timeline.SourceOriginal || c.Duration != 3 || c.Video.Start != 2 {
		t.Fatalf("clip 1: %+v", c)
	}
	if c := tl.Clips[2]; c.Source != timeline.SourceOriginal || c.Duration != 2 || c.Audio.Start != 5 {
		t.Fatalf("clip 2: %+v", c)
	}
	if tl.Duration() != 7 {
		t.Fatalf("expected 7s timeline, got %v", tl.Duration())
	}
}

func TestAssembleDurationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		n := 1 + rng.Intn(40)
		segments := make([]transcript.Segment, n)
		start := 0.0
		for i := range segments {
			d := rng.Float64() * 4
			segments[i] = transcript.Segment{Start: start, End: start + d, Text: "k" + string(rune('a'+i%26))}
			start += d
		}
		matches := map[string]stock.Match{}
		for i := 0; i < 26; i++ {
			if rng.Intn(2) == 0 {
				kw := "k" + string(rune('a'+i))
				matches[kw] = stock.Match{Found: true, Keyword: kw, VideoURL: "https://v/" + kw}
			}
		}
		asm := timeline.NewAssembler(&mapResolver{matches: matches}, fileFetcher{}, timeline.AssemblerOptions{Concurrency: 3}, nil)
		tl, err := asm.Assemble(context.Background(), timeline.Source{Path: "src.mp4"}, segments, annotateAll(segments), dirScope(t.TempDir()))
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if got, want := tl.Duration(), transcript.TotalDuration(segments); math.Abs(got-want) > 1e-9 {
			t.Fatalf("run %d: timeline %.6f != transcript %.6f", run, got, want)
		}
	}
}

func TestAssembleKeepsOriginalOnFetchFailure(t *testing.T) {
	segments := scenarioSegments()
	resolver := &mapResolver{matches: map[string]stock.Match{
		"world": {Found: true, VideoURL: "https://v/world.mp4"},
	}}
	fetcher := fileFetcher{fail: map[string]bool{"https://v/world.mp4": true}}
	tl, err := timeline.NewAssembler(resolver, fetcher, timeline.AssemblerOptions{}, nil).
		Assemble(context.Background(), timeline.Source{Path: "src.mp4"}, segments, annotateAll(segments), dirScope(t.TempDir()))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if tl.StockCount() != 0 {
		t.Fatalf("expected all original clips, got %d stock", tl.StockCount())
	}
}

func TestAssembleSkipsResolutionWhenPolicyDeclines(t *testing.T) {
	segments := scenarioSegments()
	resolver := &mapResolver{}
	annotations := keywords.Set{0: {Index: 0, Keyword: "hello", Confidence: 0.2}}
	_, err := timeline.NewAssembler(resolver, fileFetcher{}, timeline.AssemblerOptions{Policy: timeline.KeywordPolicy{MinConfidence: 0.5}}, nil).
		Assemble(context.Background(), timeline.Source{Path: "src.mp4"}, segments, annotations, dirScope(t.TempDir()))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(resolver.calls) != 0 {
		t.Fatalf("expected no lookups, got %v", resolver.calls)
	}
}

func TestAssembleReturnsCancellation(t *testing.T) {
	segments := scenarioSegments()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := timeline.NewAssembler(&mapResolver{}, fileFetcher{}, timeline.AssemblerOptions{}, nil).
		Assemble(ctx, timeline.Source{Path: "src.mp4"}, segments, annotateAll(segments), dirScope(t.TempDir()))
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
