package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"broll/internal/jobs"
	"broll/internal/keywords"
	"broll/internal/logging"
	"broll/internal/media/ffprobe"
	"broll/internal/services"
	"broll/internal/staging"
	"broll/internal/timeline"
	"broll/internal/transcript"
)

// Progress checkpoints, one per completed stage.
const (
	ProgressExtracted   = 20
	ProgressTranscribed = 40
	ProgressKeywords    = 60
	ProgressResolved    = 80
	ProgressEncoded     = 95
	ProgressComplete    = 100
)

// Stage names reported on job records.
const (
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StageKeywords   = "keywords"
	StageResolve    = "resolve"
	StageEncode     = "encode"
)

const audioFileName = "audio.wav"

// AudioExtractor writes the speech track of a video. *ffmpeg.Tool satisfies it.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, source, dest string) error
}

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Segmenter transcribes audio. *transcript.Segmenter satisfies it.
type Segmenter interface {
	Segment(ctx context.Context, audioPath, workDir string) ([]transcript.Segment, error)
}

// Annotator attaches keywords to segments. *keywords.Batcher satisfies it.
type Annotator interface {
	Annotate(ctx context.Context, segments []transcript.Segment) (keywords.Set, error)
}

// Assembler builds the clip timeline. *timeline.Assembler satisfies it.
type Assembler interface {
	Assemble(ctx context.Context, src timeline.Source, segments []transcript.Segment, annotations keywords.Set, scope timeline.Scope) (timeline.Timeline, error)
}

// Encoder renders a timeline. *timeline.Encoder satisfies it.
type Encoder interface {
	Encode(ctx context.Context, tl timeline.Timeline, scope timeline.Scope, dest string) error
}

// Stages bundles the concrete stage implementations.
type Stages struct {
	Audio     AudioExtractor
	Probe     ProbeFunc
	Segmenter Segmenter
	Annotator Annotator
	Assembler Assembler
	Encoder   Encoder
}

// Pipeline runs one job through every stage.
type Pipeline struct {
	stages    Stages
	outputDir string
	encodeSem chan struct{}
	logger    *slog.Logger
}

// NewPipeline constructs a Pipeline writing results to outputDir. At most
// encodeConcurrency jobs encode at once across all workers.
func NewPipeline(stages Stages, outputDir string, encodeConcurrency int, logger *slog.Logger) *Pipeline {
	if encodeConcurrency <= 0 {
		encodeConcurrency = 1
	}
	return &Pipeline{
		stages:    stages,
		outputDir: strings.TrimSpace(outputDir),
		encodeSem: make(chan struct{}, encodeConcurrency),
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// OutputPath returns where job id's result is written.
func (p *Pipeline) OutputPath(id string) string {
	return filepath.Join(p.outputDir, fmt.Sprintf("output_%s.mp4", id))
}

// Run executes the stages in order, reporting a checkpoint after each.
func (p *Pipeline) Run(ctx context.Context, job jobs.Job, scope *staging.Scope, report ProgressFunc) (string, error) {
	if report == nil {
		report = func(string, int) {}
	}
	if err := p.validate(); err != nil {
		return "", err
	}

	stageCtx := services.WithStage(ctx, StageExtract)
	src, err := p.probe(stageCtx, job.SourcePath)
	if err != nil {
		return "", err
	}
	audioPath := scope.Path(audioFileName)
	if err := p.stages.Audio.ExtractAudio(stageCtx, job.SourcePath, audioPath); err != nil {
		if ctxErr := services.FromContext(ctx, StageExtract); ctxErr != nil {
			return "", ctxErr
		}
		return "", services.Wrap(services.ErrValidation, StageExtract, "extract audio", "could not read an audio track from the upload", err)
	}
	report(StageExtract, ProgressExtracted)

	stageCtx = services.WithStage(ctx, StageTranscribe)
	segments, err := p.stages.Segmenter.Segment(stageCtx, audioPath, scope.Dir())
	if err != nil {
		return "", err
	}
	report(StageTranscribe, ProgressTranscribed)

	stageCtx = services.WithStage(ctx, StageKeywords)
	annotations, err := p.stages.Annotator.Annotate(stageCtx, segments)
	if err != nil {
		return "", err
	}
	report(StageKeywords, ProgressKeywords)

	stageCtx = services.WithStage(ctx, StageResolve)
	tl, err := p.stages.Assembler.Assemble(stageCtx, src, segments, annotations, scope)
	if err != nil {
		return "", err
	}
	report(StageResolve, ProgressResolved)

	stageCtx = services.WithStage(ctx, StageEncode)
	release, err := p.acquireEncodeSlot(stageCtx)
	if err != nil {
		return "", err
	}
	defer release()
	dest := p.OutputPath(job.ID)
	if err := p.stages.Encoder.Encode(stageCtx, tl, scope, dest); err != nil {
		return "", err
	}
	report(StageEncode, ProgressEncoded)

	logging.WithContext(ctx, p.logger).Info("pipeline finished",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Int("segments", len(segments)),
		logging.Int("annotated", annotations.Len()),
		logging.Int("stock_clips", tl.StockCount()),
		logging.Float64("duration_seconds", tl.Duration()),
	)
	return dest, nil
}

func (p *Pipeline) validate() error {
	s := p.stages
	if s.Audio == nil || s.Probe == nil || s.Segmenter == nil || s.Annotator == nil || s.Assembler == nil || s.Encoder == nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "", "pipeline stages not configured", nil)
	}
	if p.outputDir == "" {
		return services.Wrap(services.ErrConfiguration, "pipeline", "", "output directory not configured", nil)
	}
	return nil
}

func (p *Pipeline) probe(ctx context.Context, path string) (timeline.Source, error) {
	result, err := p.stages.Probe(ctx, path)
	if err != nil {
		if ctxErr := services.FromContext(ctx, StageExtract); ctxErr != nil {
			return timeline.Source{}, ctxErr
		}
		return timeline.Source{}, services.Wrap(services.ErrValidation, StageExtract, "probe", "upload is not a readable video", err)
	}
	width, height, ok := result.FrameSize()
	if !ok {
		return timeline.Source{}, services.Wrap(services.ErrValidation, StageExtract, "probe", "upload has no video stream", nil)
	}
	if !result.HasAudio() {
		return timeline.Source{}, services.Wrap(services.ErrValidation, StageExtract, "probe", "upload has no audio stream", nil)
	}
	return timeline.Source{Path: path, Width: width, Height: height, Duration: result.DurationSeconds()}, nil
}

func (p *Pipeline) acquireEncodeSlot(ctx context.Context) (func(), error) {
	select {
	case p.encodeSem <- struct{}{}:
		return func() { <-p.encodeSem }, nil
	case <-ctx.Done():
		return nil, services.FromContext(ctx, StageEncode)
	}
}
