package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation     = errors.New("invalid input")
	ErrTranscription  = errors.New("transcription failure")
	ErrKeywordService = errors.New("keyword service failure")
	ErrStockFetch     = errors.New("stock fetch failure")
	ErrEncoding       = errors.New("encoding failure")
	ErrCancelled      = errors.New("cancelled")
	ErrTimeout        = errors.New("timeout")
	ErrNotFound       = errors.New("not found")
	ErrNotReady       = errors.New("not ready")
	ErrQueueFull      = errors.New("queue full")
	ErrExternalTool   = errors.New("external tool error")
	ErrTransient      = errors.New("transient failure")
	ErrConfiguration  = errors.New("configuration error")
)

// Error kinds persisted on failed jobs and emitted in logs.
const (
	KindValidation     = "validation"
	KindTranscription  = "transcription"
	KindKeywordService = "keyword_service"
	KindStockFetch     = "stock_fetch"
	KindEncoding       = "encoding"
	KindCancelled      = "cancelled"
	KindTimeout        = "timeout"
	KindNotFound       = "not_found"
	KindNotReady       = "not_ready"
	KindQueueFull      = "queue_full"
	KindExternalTool   = "external_tool"
	KindTransient      = "transient"
	KindConfiguration  = "configuration"
	KindUnknown        = "unknown"
)

var kindOrder = []struct {
	marker error
	kind   string
}{
	{ErrCancelled, KindCancelled},
	{ErrTimeout, KindTimeout},
	{ErrValidation, KindValidation},
	{ErrTranscription, KindTranscription},
	{ErrKeywordService, KindKeywordService},
	{ErrStockFetch, KindStockFetch},
	{ErrEncoding, KindEncoding},
	{ErrNotFound, KindNotFound},
	{ErrNotReady, KindNotReady},
	{ErrQueueFull, KindQueueFull},
	{ErrConfiguration, KindConfiguration},
	{ErrExternalTool, KindExternalTool},
	{ErrTransient, KindTransient},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FromContext converts context termination into the matching marker. It
// returns nil when ctx is still live.
func FromContext(ctx context.Context, stage string) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(ErrTimeout, stage, "", "job deadline exceeded", err)
	default:
		return Wrap(ErrCancelled, stage, "", "job cancelled", err)
	}
}

// Kind reports the classification of err. Context errors that were never
// wrapped are classified too.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range kindOrder {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindUnknown
}

type hintError struct {
	err  error
	hint string
}

func (h *hintError) Error() string { return h.err.Error() }

func (h *hintError) Unwrap() error { return h.err }

// WithHint attaches an operator-facing remediation hint to err.
func WithHint(err error, hint string) error {
	hint = strings.TrimSpace(hint)
	if err == nil || hint == "" {
		return err
	}
	return &hintError{err: err, hint: hint}
}

// Hint returns the outermost hint attached to err, or a default derived from
// the error kind.
func Hint(err error) string {
	var h *hintError
	if errors.As(err, &h) {
		return h.hint
	}
	switch Kind(err) {
	case KindValidation:
		return "check the uploaded file"
	case KindTranscription:
		return "verify the video has an audio track and whisperx is installed"
	case KindKeywordService:
		return "verify llm.api_key and llm.base_url"
	case KindEncoding:
		return "check ffmpeg output in the logs"
	case KindTimeout:
		return "increase workflow.job_timeout_seconds or submit a shorter video"
	case KindConfiguration:
		return "run broll doctor"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
