package keywords

import (
	"context"
	"fmt"
	"log/slog"

	"broll/internal/logging"
	"broll/internal/services"
	"broll/internal/transcript"
)

const (
	// DefaultBatchSize is used when a non-positive batch size is configured.
	DefaultBatchSize = 20

	stageName = "keywords"
)

// Extractor returns keyword annotations for one ordered batch of segment
// texts. Returned indices are positions within batch.
type Extractor interface {
	Extract(ctx context.Context, batch []string) ([]RawAnnotation, error)
}

// Split partitions texts into consecutive batches of at most size entries,
// preserving order.
func Split(texts []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(texts) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batches = append(batches, texts[start:end:end])
	}
	return batches
}

// Batcher drives an Extractor over a transcript.
type Batcher struct {
	extractor Extractor
	size      int
	logger    *slog.Logger
}

// NewBatcher returns a Batcher sending size texts per extractor call.
func NewBatcher(extractor Extractor, size int, logger *slog.Logger) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{
		extractor: extractor,
		size:      size,
		logger:    logging.NewComponentLogger(logger, "keywords"),
	}
}

// Annotate extracts keywords for segments batch by batch. An extractor error
// aborts the whole run with ErrKeywordService; malformed, out-of-range, and
// duplicate entries are skipped.
func (b *Batcher) Annotate(ctx context.Context, segments []transcript.Segment) (Set, error) {
	set := make(Set)
	if len(segments) == 0 {
		return set, nil
	}
	if b == nil || b.extractor == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "annotate", "no keyword extractor configured", nil)
	}
	logger := logging.WithContext(ctx, b.logger)

	batches := Split(transcript.Texts(segments), b.size)
	skipped := 0
	for batchIndex, batch := range batches {
		if err := services.FromContext(ctx, stageName); err != nil {
			return nil, err
		}
		raw, err := b.extractor.Extract(ctx, batch)
		if err != nil {
			if ctxErr := services.FromContext(ctx, stageName); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, services.Wrap(
				services.ErrKeywordService,
				stageName,
				"extract",
				fmt.Sprintf("batch %d of %d failed", batchIndex+1, len(batches)),
				err,
			)
		}
		offset := batchIndex * b.size
		for _, entry := range raw {
			if entry.Index < 0 || entry.Index >= len(batch) {
				skipped++
				logger.Debug("keyword index out of range",
					logging.Int("batch", batchIndex),
					logging.Int("local_index", entry.Index),
					logging.Int("batch_len", len(batch)),
				)
				continue
			}
			keyword := Normalize(entry.Keyword)
			if keyword == "" {
				skipped++
				continue
			}
			global := offset + entry.Index
			if _, exists := set[global]; exists {
				skipped++
				continue
			}
			set[global] = Annotation{Index: global, Keyword: keyword, Confidence: clampConfidence(entry.Confidence)}
		}
	}

	logger.Info("keywords extracted",
		logging.String(logging.FieldEventType, "keywords_extracted"),
		logging.Int("segments", len(segments)),
		logging.Int("batches", len(batches)),
		logging.Int("annotated", len(set)),
		logging.Int("skipped", skipped),
	)
	return set, nil
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
