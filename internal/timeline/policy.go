package timeline

import (
	"fmt"
	"strings"

	"broll/internal/keywords"
	"broll/internal/transcript"
)

// Substitution strategies accepted by PolicyFor.
const (
	StrategyKeyword = "keyword"
	StrategyOff     = "off"
)

// Decision is a policy verdict for one segment.
type Decision struct {
	Substitute bool
	Reason     string
}

// Policy decides whether a segment is a stock-footage candidate.
type Policy interface {
	Decide(seg transcript.Segment, annotation keywords.Annotation, annotated bool) Decision
}

// KeywordPolicy substitutes every annotated segment whose keyword confidence
// reaches MinConfidence.
type KeywordPolicy struct {
	MinConfidence float64
}

// Decide implements Policy.
func (p KeywordPolicy) Decide(seg transcript.Segment, annotation keywords.Annotation, annotated bool) Decision {
	switch {
	case !annotated:
		return Decision{Reason: "no keyword"}
	case seg.Duration() <= 0:
		return Decision{Reason: "empty segment"}
	case strings.TrimSpace(annotation.Keyword) == "":
		return Decision{Reason: "no keyword"}
	case annotation.Confidence < p.MinConfidence:
		return Decision{Reason: fmt.Sprintf("confidence %.2f below %.2f", annotation.Confidence, p.MinConfidence)}
	}
	return Decision{Substitute: true, Reason: "keyword match"}
}

// OffPolicy never substitutes.
type OffPolicy struct{}

// Decide implements Policy.
func (OffPolicy) Decide(transcript.Segment, keywords.Annotation, bool) Decision {
	return Decision{Reason: "substitution disabled"}
}

// PolicyFor returns the policy for strategy. Unknown strategies fall back to
// the keyword policy.
func PolicyFor(strategy string, minConfidence float64) Policy {
	if strings.EqualFold(strings.TrimSpace(strategy), StrategyOff) {
		return OffPolicy{}
	}
	return KeywordPolicy{MinConfidence: minConfidence}
}
