package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"broll/internal/logging"
	"broll/internal/media/ffmpeg"
	"broll/internal/services"
)

const encodeStage = "encode"

// Renderer renders and joins clips. *ffmpeg.Tool satisfies it.
type Renderer interface {
	Render(ctx context.Context, spec ffmpeg.RenderSpec) error
	Concat(ctx context.Context, clips []string, listPath, output string) error
}

// Encoder turns a Timeline into a single video file.
type Encoder struct {
	renderer Renderer
	encoding ffmpeg.Encoding
	logger   *slog.Logger
}

// NewEncoder returns an Encoder using enc for every clip. A zero frame size
// in enc is taken from the timeline.
func NewEncoder(renderer Renderer, enc ffmpeg.Encoding, logger *slog.Logger) *Encoder {
	return &Encoder{renderer: renderer, encoding: enc, logger: logging.NewComponentLogger(logger, "encoder")}
}

// Encode renders each clip into scope and concatenates them into dest. dest
// only appears once the join succeeded.
func (e *Encoder) Encode(ctx context.Context, tl Timeline, scope Scope, dest string) error {
	if e == nil || e.renderer == nil {
		return services.Wrap(services.ErrConfiguration, encodeStage, "encode", "no renderer configured", nil)
	}
	enc := e.encoding
	if enc.Width <= 0 || enc.Height <= 0 {
		enc.Width, enc.Height = evenDimension(tl.Width), evenDimension(tl.Height)
	}
	if enc.Width <= 0 || enc.Height <= 0 {
		return services.Wrap(services.ErrEncoding, encodeStage, "frame size", "source frame size unknown", nil)
	}
	logger := logging.WithContext(ctx, e.logger)

	rendered := make([]string, 0, len(tl.Clips))
	for _, clip := range tl.Clips {
		if clip.Duration <= 0 {
			continue
		}
		if err := services.FromContext(ctx, encodeStage); err != nil {
			return err
		}
		out := scope.Path(fmt.Sprintf("clip_%04d.mp4", clip.Index))
		spec := ffmpeg.RenderSpec{
			Video:    ffmpeg.Input{Path: clip.Video.Path, Start: clip.Video.Start, Loop: clip.Loop},
			Audio:    ffmpeg.Input{Path: clip.Audio.Path, Start: clip.Audio.Start},
			Duration: clip.Duration,
			Output:   out,
			Encoding: enc,
		}
		if err := e.renderer.Render(ctx, spec); err != nil {
			return e.fail(ctx, "render clip", fmt.Sprintf("clip %d (%s)", clip.Index, clip.Source), err)
		}
		rendered = append(rendered, out)
	}
	if len(rendered) == 0 {
		return services.Wrap(services.ErrEncoding, encodeStage, "concat", "timeline has no playable clips", nil)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrEncoding, encodeStage, "create output dir", filepath.Dir(dest), err)
	}
	partial := partialPath(dest)
	if err := e.renderer.Concat(ctx, rendered, scope.Path("concat.txt"), partial); err != nil {
		_ = os.Remove(partial)
		return e.fail(ctx, "concat", filepath.Base(dest), err)
	}
	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrEncoding, encodeStage, "finalize output", filepath.Base(dest), err)
	}

	logger.Info("video encoded",
		logging.String(logging.FieldEventType, "encode_complete"),
		logging.String("output", dest),
		logging.Int("clips", len(rendered)),
		logging.Int("width", enc.Width),
		logging.Int("height", enc.Height),
	)
	return nil
}

func (e *Encoder) fail(ctx context.Context, op, msg string, err error) error {
	if ctxErr := services.FromContext(ctx, encodeStage); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, os.ErrNotExist) {
		return services.WithHint(services.Wrap(services.ErrEncoding, encodeStage, op, msg, err), "install ffmpeg or set its location on PATH")
	}
	return services.Wrap(services.ErrEncoding, encodeStage, op, msg, err)
}

func partialPath(dest string) string {
	ext := filepath.Ext(dest)
	return strings.TrimSuffix(dest, ext) + ".partial" + ext
}

// evenDimension rounds down to an even pixel count as yuv420p requires.
func evenDimension(v int) int {
	if v <= 0 {
		return 0
	}
	return v &^ 1
}
