package daemonrun

import (
	"context"
	"fmt"
	"log/slog"

	"broll/internal/config"
	"broll/internal/daemon"
	"broll/internal/jobs"
	"broll/internal/keywords"
	"broll/internal/media/ffmpeg"
	"broll/internal/media/ffprobe"
	"broll/internal/notifications"
	"broll/internal/queue"
	"broll/internal/services/llm"
	"broll/internal/services/pexels"
	"broll/internal/services/whisperx"
	"broll/internal/staging"
	"broll/internal/stock"
	"broll/internal/timeline"
	"broll/internal/transcript"
	"broll/internal/workflow"
)

// openStore selects the job record backend.
func openStore(cfg *config.Config) (jobs.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageSQLite:
		store, err := queue.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open job database: %w", err)
		}
		return store, nil
	default:
		return jobs.NewMemoryStore(), nil
	}
}

// buildPipeline wires every processing stage from configuration.
func buildPipeline(cfg *config.Config, logger *slog.Logger) *workflow.Pipeline {
	tool := ffmpeg.New(cfg.FFmpegBinary())
	ffprobeBinary := cfg.FFprobeBinary()

	engine := whisperx.NewService(whisperx.Config{
		Model:       cfg.Transcription.Model,
		Language:    cfg.Transcription.Language,
		CUDAEnabled: cfg.Transcription.CUDAEnabled,
		VADMethod:   cfg.Transcription.VADMethod,
		HFToken:     cfg.Transcription.HFToken,
	})

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	batcher := keywords.NewBatcher(keywords.NewLLMExtractor(llmClient, logger), cfg.Keywords.BatchSize, logger)

	stockClient := pexels.NewClient(pexels.Config{
		APIKey:            cfg.Stock.APIKey,
		BaseURL:           cfg.Stock.BaseURL,
		TimeoutSeconds:    cfg.Stock.TimeoutSeconds,
		RequestsPerMinute: cfg.Stock.RequestsPerMinute,
		RetryAttempts:     cfg.Stock.RetryAttempts,
	})
	assembler := timeline.NewAssembler(
		stock.NewResolver(stockClient, cfg.Stock.Size, logger),
		stock.NewDownloader(cfg.MaxDownloadBytes()),
		timeline.AssemblerOptions{
			Policy:      timeline.PolicyFor(cfg.Timeline.Strategy, cfg.Timeline.MinConfidence),
			Orientation: cfg.Stock.Orientation,
			Concurrency: cfg.Workflow.ResolveConcurrency,
		},
		logger,
	)
	encoder := timeline.NewEncoder(tool, ffmpeg.Encoding{
		FPS:        cfg.Timeline.FPS,
		VideoCodec: cfg.Timeline.VideoCodec,
		AudioCodec: cfg.Timeline.AudioCodec,
		Preset:     cfg.Timeline.Preset,
	}, logger)

	stages := workflow.Stages{
		Audio: tool,
		Probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBinary, path)
		},
		Segmenter: transcript.NewSegmenter(engine, logger),
		Annotator: batcher,
		Assembler: assembler,
		Encoder:   encoder,
	}
	return workflow.NewPipeline(stages, cfg.Paths.OutputDir, cfg.Workflow.EncodeConcurrency, logger)
}

// buildDaemon assembles the store, pipeline, manager, and daemon.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	stagingMgr := staging.NewManager(cfg.Paths.StagingDir)
	manager := workflow.NewManager(store, buildPipeline(cfg, logger), stagingMgr, workflow.Options{
		Workers:       cfg.Workflow.Workers,
		QueueCapacity: cfg.Workflow.QueueCapacity,
		JobTimeout:    cfg.JobTimeout(),
	}, logger)
	manager.SetNotifier(notifications.NewService(cfg))
	d, err := daemon.New(cfg, store, manager, stagingMgr, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}
