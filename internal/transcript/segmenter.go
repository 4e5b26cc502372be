package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"broll/internal/logging"
	"broll/internal/services"
)

const stageName = "transcribe"

// Transcriber runs a speech-to-text engine over an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, workDir string) ([]Segment, error)
}

// Segmenter validates the audio input and delegates to a Transcriber.
type Segmenter struct {
	engine Transcriber
	logger *slog.Logger
}

// NewSegmenter wraps engine. A nil logger discards output.
func NewSegmenter(engine Transcriber, logger *slog.Logger) *Segmenter {
	return &Segmenter{engine: engine, logger: logging.NewComponentLogger(logger, "transcript")}
}

// Segment transcribes audioPath. Missing, empty, or unreadable audio, engine
// failures, and transcripts with no speech fail with ErrTranscription.
func (s *Segmenter) Segment(ctx context.Context, audioPath, workDir string) ([]Segment, error) {
	if s == nil || s.engine == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "segment", "no transcription engine configured", nil)
	}
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "open audio", "audio unavailable", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, services.Wrap(services.ErrTranscription, stageName, "open audio", fmt.Sprintf("audio %q is empty", audioPath), nil)
	}

	segments, err := s.engine.Transcribe(ctx, audioPath, workDir)
	if err != nil {
		if ctxErr := services.FromContext(ctx, stageName); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrTranscription, stageName, "engine", "speech recognition failed", err)
	}
	if len(segments) == 0 {
		return nil, services.WithHint(
			services.Wrap(services.ErrTranscription, stageName, "engine", "no speech detected", nil),
			"upload a video with spoken audio",
		)
	}

	logging.WithContext(ctx, s.logger).Debug("transcript segmented",
		logging.Int("segments", len(segments)),
		logging.Float64("speech_seconds", TotalDuration(segments)),
	)
	return segments, nil
}
