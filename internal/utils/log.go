package utils

import "strings"

// TruncateForLog collapses whitespace so multi-line prompts log on one line, then cuts s to limit runes.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
