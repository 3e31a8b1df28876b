package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims the input, drops control characters and folds runs
// of whitespace into one space. The result is cut to at most maxLen runes.
func SanitizeString(input string, maxLen int) string {
	fields := strings.FieldsFunc(input, unicode.IsSpace)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.Join(fields, " "))

	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) > maxLen {
		return strings.TrimSpace(string(runes[:maxLen]))
	}
	return cleaned
}
