package timeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"broll/internal/keywords"
	"broll/internal/logging"
	"broll/internal/services"
	"broll/internal/stock"
	"broll/internal/transcript"
)

const (
	assembleStage             = "resolve"
	defaultResolveConcurrency = 4
)

// Resolver looks up stock footage for a keyword. *stock.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, keyword, orientation string) (stock.Match, error)
}

// Fetcher downloads a stock clip. *stock.Downloader satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) (int64, error)
}

// Scope hands out per-job file paths. *staging.Scope satisfies it.
type Scope interface {
	Path(name string) string
}

// Source describes the uploaded video.
type Source struct {
	Path     string
	Width    int
	Height   int
	Duration float64
}

// AssemblerOptions tunes an Assembler.
type AssemblerOptions struct {
	Policy      Policy
	Orientation string
	Concurrency int
}

// Assembler builds a Timeline from segments and keyword annotations.
type Assembler struct {
	resolver    Resolver
	fetcher     Fetcher
	policy      Policy
	orientation string
	concurrency int
	logger      *slog.Logger
}

// NewAssembler wires the stock lookup and download steps.
func NewAssembler(resolver Resolver, fetcher Fetcher, opts AssemblerOptions, logger *slog.Logger) *Assembler {
	policy := opts.Policy
	if policy == nil {
		policy = KeywordPolicy{}
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultResolveConcurrency
	}
	return &Assembler{
		resolver:    resolver,
		fetcher:     fetcher,
		policy:      policy,
		orientation: opts.Orientation,
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "timeline"),
	}
}

// Assemble resolves every segment and returns the timeline in segment order.
// Stock misses and download failures keep the original footage; only
// cancellation or deadline expiry fail the call.
func (a *Assembler) Assemble(ctx context.Context, src Source, segments []transcript.Segment, annotations keywords.Set, scope Scope) (Timeline, error) {
	tl := Timeline{Clips: make([]Clip, len(segments)), Width: src.Width, Height: src.Height}
	logger := logging.WithContext(ctx, a.logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.concurrency)
	for i, seg := range segments {
		group.Go(func() error {
			clip, err := a.clipFor(groupCtx, logger, src, i, seg, annotations, scope)
			if err != nil {
				return err
			}
			tl.Clips[i] = clip
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if ctxErr := services.FromContext(ctx, assembleStage); ctxErr != nil {
			return Timeline{}, ctxErr
		}
		return Timeline{}, err
	}
	if err := tl.Validate(segments); err != nil {
		return Timeline{}, services.Wrap(services.ErrEncoding, assembleStage, "validate timeline", "timeline does not cover transcript", err)
	}

	logger.Info("timeline assembled",
		logging.String(logging.FieldEventType, "timeline_assembled"),
		logging.Int("clips", len(tl.Clips)),
		logging.Int("stock_clips", tl.StockCount()),
		logging.Float64("duration_seconds", tl.Duration()),
	)
	return tl, nil
}

func (a *Assembler) clipFor(ctx context.Context, logger *slog.Logger, src Source, index int, seg transcript.Segment, annotations keywords.Set, scope Scope) (Clip, error) {
	original := OriginalClip(index, src.Path, seg)
	annotation, annotated := annotations.Get(index)
	decision := a.policy.Decide(seg, annotation, annotated)
	if !decision.Substitute {
		return original, nil
	}
	if err := services.FromContext(ctx, assembleStage); err != nil {
		return Clip{}, err
	}
	if a.resolver == nil || a.fetcher == nil || scope == nil {
		return original, nil
	}

	segLogger := logger.With(
		logging.Int(logging.FieldSegmentIndex, index),
		logging.String("keyword", annotation.Keyword),
	)
	match, err := a.resolver.Resolve(ctx, annotation.Keyword, a.orientation)
	if err != nil {
		return Clip{}, err
	}
	if !match.Found {
		segLogger.Debug("stock footage not found",
			logging.Args(logging.DecisionAttrs("broll_substitution", "original", match.Reason)...)...)
		return original, nil
	}

	dest := scope.Path(fmt.Sprintf("broll_%04d.mp4", index))
	if _, err := a.fetcher.Fetch(ctx, match.VideoURL, dest); err != nil {
		if ctxErr := services.FromContext(ctx, assembleStage); ctxErr != nil {
			return Clip{}, ctxErr
		}
		logging.WarnWithContext(segLogger, "stock download failed",
			"stock_download_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldImpact, "segment keeps original footage"),
		)
		return original, nil
	}

	segLogger.Debug("stock footage selected",
		logging.Args(append(
			logging.DecisionAttrs("broll_substitution", "stock", decision.Reason),
			logging.String("video_url", match.VideoURL),
			logging.Float64("stock_duration", match.Duration),
			logging.Float64("segment_duration", seg.Duration()),
		)...)...)
	return StockClip(index, src.Path, dest, seg, annotation.Keyword, match.ThumbnailURL), nil
}
