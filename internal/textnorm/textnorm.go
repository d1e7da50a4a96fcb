// Package textnorm cleans recognized phrases before they are matched.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const punctuation = ".,!?;:"

// Normalize lowercases raw, trims it and strips the punctuation set
// ". , ! ? ; :".
func Normalize(raw string) string {
	lowered := strings.ToLower(raw)
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, lowered)
	return strings.TrimSpace(stripped)
}

// Fold normalizes raw and removes diacritics so "Réviser" and "reviser"
// compare equal.
func Fold(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, Normalize(raw))
	if err != nil {
		return Normalize(raw)
	}
	return folded
}

// CollapseSpaces replaces runs of whitespace with a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ContainsFolded reports whether needle occurs in haystack ignoring case and
// accents.
func ContainsFolded(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}
