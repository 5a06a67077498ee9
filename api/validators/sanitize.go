package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, folds runs of whitespace and control
// characters to a single space, and cuts the result to maxLen runes.
// maxLen <= 0 disables the cut.
func SanitizeString(input string, maxLen int) string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	out := []rune(strings.Join(fields, " "))
	if maxLen > 0 && len(out) > maxLen {
		out = []rune(strings.TrimSpace(string(out[:maxLen])))
	}
	return string(out)
}
