package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultBinary is the ffmpeg executable looked up on PATH.
const DefaultBinary = "ffmpeg"

// RunFunc executes an external command.
type RunFunc func(ctx context.Context, name string, args ...string) error

// Tool runs ffmpeg commands.
type Tool struct {
	binary string
	run    RunFunc
}

// Option customizes a Tool.
type Option func(*Tool)

// WithRunner replaces process execution (for tests).
func WithRunner(run RunFunc) Option {
	return func(t *Tool) {
		if run != nil {
			t.run = run
		}
	}
}

// New constructs a Tool for binary, defaulting to ffmpeg on PATH.
func New(binary string, opts ...Option) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	tool := &Tool{binary: binary, run: execRun}
	for _, opt := range opts {
		opt(tool)
	}
	return tool
}

func execRun(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(string(output), 512))
	}
	return nil
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}

// ExtractAudio writes the first audio track of source as mono 16kHz WAV.
func (t *Tool) ExtractAudio(ctx context.Context, source, dest string) error {
	if err := t.run(ctx, t.binary, ExtractAudioArgs(source, dest)...); err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return nil
}

// ExtractAudioArgs builds the speech extraction command line.
func ExtractAudioArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

// Input is a time range of a media file.
type Input struct {
	Path  string
	Start float64
	// Loop repeats the input indefinitely; the output duration bounds it.
	Loop bool
}

// Encoding holds the shared output parameters every rendered clip uses so
// clips can be concatenated without re-encoding.
type Encoding struct {
	Width      int
	Height     int
	FPS        int
	VideoCodec string
	AudioCodec string
	Preset     string
}

// RenderSpec describes one output clip: video from Video, audio from Audio,
// both cut to Duration seconds.
type RenderSpec struct {
	Video    Input
	Audio    Input
	Duration float64
	Output   string
	Encoding Encoding
}

// Validate reports malformed specs before ffmpeg is invoked.
func (s RenderSpec) Validate() error {
	switch {
	case strings.TrimSpace(s.Video.Path) == "":
		return errors.New("render: video input required")
	case strings.TrimSpace(s.Audio.Path) == "":
		return errors.New("render: audio input required")
	case strings.TrimSpace(s.Output) == "":
		return errors.New("render: output path required")
	case s.Duration <= 0:
		return fmt.Errorf("render: invalid duration %v", s.Duration)
	case s.Encoding.Width <= 0 || s.Encoding.Height <= 0:
		return fmt.Errorf("render: invalid frame size %dx%d", s.Encoding.Width, s.Encoding.Height)
	}
	return nil
}

// Render encodes one clip.
func (t *Tool) Render(ctx context.Context, spec RenderSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if err := t.run(ctx, t.binary, RenderArgs(spec)...); err != nil {
		return fmt.Errorf("ffmpeg render %s: %w", spec.Output, err)
	}
	return nil
}

// RenderArgs builds the clip command line. The video is scaled to cover the
// target frame and center-cropped (aspect fill), so no letterboxing occurs.
func RenderArgs(spec RenderSpec) []string {
	enc := spec.Encoding
	fps := enc.FPS
	if fps <= 0 {
		fps = 30
	}
	videoCodec := firstNonEmpty(enc.VideoCodec, "libx264")
	audioCodec := firstNonEmpty(enc.AudioCodec, "aac")
	duration := formatSeconds(spec.Duration)

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if spec.Video.Loop {
		args = append(args, "-stream_loop", "-1")
	}
	if spec.Video.Start > 0 {
		args = append(args, "-ss", formatSeconds(spec.Video.Start))
	}
	args = append(args, "-t", duration, "-i", spec.Video.Path)
	if spec.Audio.Start > 0 {
		args = append(args, "-ss", formatSeconds(spec.Audio.Start))
	}
	args = append(args, "-t", duration, "-i", spec.Audio.Path)

	filter := fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%d,format=yuv420p[v]",
		enc.Width, enc.Height, enc.Width, enc.Height, fps,
	)
	args = append(args,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", "1:a:0",
		"-t", duration,
		"-c:v", videoCodec,
	)
	if enc.Preset != "" {
		args = append(args, "-preset", enc.Preset)
	}
	args = append(args,
		"-c:a", audioCodec,
		"-ar", "44100",
		"-ac", "2",
		spec.Output,
	)
	return args
}

// Concat joins rendered clips in order into output without re-encoding.
// listPath is a scratch file for the concat demuxer.
func (t *Tool) Concat(ctx context.Context, clips []string, listPath, output string) error {
	if len(clips) == 0 {
		return errors.New("concat: no clips")
	}
	if err := os.WriteFile(listPath, []byte(ConcatList(clips)), 0o644); err != nil {
		return fmt.Errorf("concat: write list: %w", err)
	}
	if err := t.run(ctx, t.binary, ConcatArgs(listPath, output)...); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}

// ConcatList renders the concat demuxer script for clips.
func ConcatList(clips []string) string {
	var b strings.Builder
	for _, clip := range clips {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(clip, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// ConcatArgs builds the concat command line.
func ConcatArgs(listPath, output string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
