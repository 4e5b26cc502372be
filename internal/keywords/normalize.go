package keywords

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const keywordTrimSet = "\"'`.,;:!?()[]{}"

// Normalize lower-cases keyword, collapses internal whitespace, and trims
// surrounding quotes and punctuation. It returns "" for keywords that carry
// nothing searchable.
func Normalize(keyword string) string {
	fields := strings.Fields(keyword)
	if len(fields) == 0 {
		return ""
	}
	joined := strings.Trim(strings.Join(fields, " "), keywordTrimSet)
	joined = strings.TrimSpace(joined)
	if joined == "" {
		return ""
	}
	// cases.Caser keeps state and is not safe for concurrent use.
	return cases.Lower(language.Und).String(joined)
}
