package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// words maps English language names to their ISO 639-1 code for users who
// write "english" instead of "en" in configuration.
var words = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
}

func parse(code string) (xlang.Base, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return xlang.Base{}, false
	}
	if mapped, ok := words[code]; ok {
		code = mapped
	}
	if tag, err := xlang.Parse(code); err == nil {
		base, confidence := tag.Base()
		if confidence != xlang.No {
			return base, true
		}
	}
	base, err := xlang.ParseBase(code)
	if err != nil {
		return xlang.Base{}, false
	}
	return base, true
}

// ToISO2 converts a language code, tag, or English name to ISO 639-1.
// Returns an empty string for unrecognized input.
func ToISO2(code string) string {
	base, ok := parse(code)
	if !ok {
		return ""
	}
	value := base.String()
	if len(value) != 2 {
		return ""
	}
	return value
}

// ToISO3 converts a language code to ISO 639-2/T, or "und" when unknown.
func ToISO3(code string) string {
	base, ok := parse(code)
	if !ok {
		return "und"
	}
	return base.ISO3()
}

// Valid reports whether code names a known language.
func Valid(code string) bool {
	_, ok := parse(code)
	return ok
}

// DisplayName returns the English name of the language, "Unknown" for empty
// input, or the uppercased input when unrecognized.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if base, ok := parse(trimmed); ok {
		tag, err := xlang.Compose(base)
		if err == nil {
			if name := display.English.Languages().Name(tag); name != "" {
				return name
			}
		}
	}
	return strings.ToUpper(trimmed)
}
