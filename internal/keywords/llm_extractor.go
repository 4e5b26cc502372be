package keywords

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"broll/internal/logging"
	"broll/internal/services/llm"
)

// Completer issues a JSON-only chat completion. *llm.Client satisfies it.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLMExtractor asks a chat model for keywords.
type LLMExtractor struct {
	client Completer
	logger *slog.Logger
}

// NewLLMExtractor wraps client.
func NewLLMExtractor(client Completer, logger *slog.Logger) *LLMExtractor {
	return &LLMExtractor{client: client, logger: logging.NewComponentLogger(logger, "keywords.llm")}
}

type promptSegment struct {
	Index int    `json:"i"`
	Text  string `json:"t"`
}

type rawEntry struct {
	K          string          `json:"k"`
	Keyword    string          `json:"keyword"`
	I          json.RawMessage `json:"i"`
	Index      json.RawMessage `json:"index"`
	C          json.RawMessage `json:"c"`
	Confidence json.RawMessage `json:"confidence"`
}

// Extract sends batch to the model. Transport and service failures are
// returned; an unusable response yields no annotations.
func (e *LLMExtractor) Extract(ctx context.Context, batch []string) ([]RawAnnotation, error) {
	if e == nil || e.client == nil {
		return nil, errors.New("keyword extract: llm client required")
	}
	if len(batch) == 0 {
		return nil, nil
	}
	userPrompt, err := BuildUserPrompt(batch)
	if err != nil {
		return nil, err
	}
	content, err := e.client.CompleteJSON(ctx, ExtractionPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("keyword extract: %w", err)
	}
	entries, err := ParseResponse(content)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "keyword response unusable",
			"keyword_response_invalid",
			logging.Error(err),
			logging.Int("batch_len", len(batch)),
			logging.String(logging.FieldImpact, "segments in this batch keep original footage"),
			logging.String(logging.FieldErrorHint, "check the configured llm.model follows JSON instructions"),
		)
		return nil, nil
	}
	return entries, nil
}

// BuildUserPrompt encodes batch as the indexed JSON array the prompt expects.
func BuildUserPrompt(batch []string) (string, error) {
	payload := make([]promptSegment, len(batch))
	for i, text := range batch {
		payload[i] = promptSegment{Index: i, Text: strings.TrimSpace(text)}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("keyword extract: encode prompt: %w", err)
	}
	return string(encoded), nil
}

// ParseResponse decodes a {"broll": [...]} object or a bare array. Entries
// that cannot be decoded or carry no keyword are skipped. Missing confidence
// is reported as 1.
func ParseResponse(content string) ([]RawAnnotation, error) {
	raws, err := decodeEntries(content)
	if err != nil {
		return nil, err
	}
	out := make([]RawAnnotation, 0, len(raws))
	for _, raw := range raws {
		var entry rawEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		keyword := strings.TrimSpace(firstNonEmpty(entry.K, entry.Keyword))
		if keyword == "" {
			continue
		}
		index, ok := parseIndex(firstRaw(entry.I, entry.Index))
		if !ok {
			continue
		}
		confidence, ok := parseConfidence(firstRaw(entry.C, entry.Confidence))
		if !ok {
			continue
		}
		out = append(out, RawAnnotation{Keyword: keyword, Index: index, Confidence: confidence})
	}
	return out, nil
}

func decodeEntries(content string) ([]json.RawMessage, error) {
	payload := llm.ExtractJSON(content)
	if payload == "" {
		return nil, errors.New("empty payload")
	}
	if payload[0] == '[' {
		var list []json.RawMessage
		if err := llm.DecodeLLMJSON(payload, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var wrapped map[string]json.RawMessage
	if err := llm.DecodeLLMJSON(payload, &wrapped); err != nil {
		return nil, err
	}
	for _, key := range []string{"broll", "keywords", "results", "items"} {
		body, ok := wrapped[key]
		if !ok {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		return list, nil
	}
	return nil, errors.New(`response has no "broll" array`)
}

func parseIndex(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, false
		}
		number = parsed
	}
	if number < 0 || number != math.Trunc(number) || number > math.MaxInt32 {
		return 0, false
	}
	return int(number), true
}

func parseConfidence(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 1, true
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, false
		}
		number = parsed
	}
	if math.IsNaN(number) {
		return 0, false
	}
	return number, true
}

func firstRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
