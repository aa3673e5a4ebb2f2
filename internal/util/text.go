package util

import (
	"strings"
	"unicode/utf8"
)

// SanitizeDBText makes value storable in a Postgres text column: invalid
// UTF-8 and NUL bytes are dropped, and values longer than maxRunes are cut
// and suffixed with "...". maxRunes <= 0 disables the cut.
func SanitizeDBText(value string, maxRunes int) string {
	if value == "" {
		return value
	}

	sanitized := strings.ReplaceAll(strings.ToValidUTF8(value, ""), "\x00", "")
	if maxRunes <= 0 || utf8.RuneCountInString(sanitized) <= maxRunes {
		return sanitized
	}
	runes := []rune(sanitized)
	return string(runes[:maxRunes]) + "..."
}
