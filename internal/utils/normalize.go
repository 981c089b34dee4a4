package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spaces = regexp.MustCompile(`\s+`)
	words  = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// Normalize strips diacritics, collapses runs of whitespace and lower-cases the text.
// "  Servicio  de SALUD Metropolitano " -> "servicio de salud metropolitano"
func Normalize(s string) string {
	if s == "" {
		return s
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		normalized = s
	}

	normalized = spaces.ReplaceAllString(normalized, " ")

	return strings.ToLower(strings.TrimSpace(normalized))
}

// NormalizeAll normalizes every value and drops the ones that end up empty.
func NormalizeAll(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if n := Normalize(v); n != "" {
			result = append(result, n)
		}
	}
	return result
}

// Words returns the set of word tokens found in s. The text is expected to be normalized already.
func Words(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range words.FindAllString(s, -1) {
		set[w] = struct{}{}
	}
	return set
}
