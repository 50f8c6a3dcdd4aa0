// Package sanitize folds user supplied text into forms that are safe for
// file names and for the standard PDF fonts.
package sanitize

import (
	"regexp"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

func fold(s string, drop runes.Set) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(drop))
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return out
}

// Text folds accents to their base letter and drops any other non-ASCII rune.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return fold(s, runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII }))
}

// FileName folds accents and replaces every run of characters outside
// [A-Za-z0-9_.-] with a single underscore.
func FileName(s string) string {
	if s == "" {
		return ""
	}
	folded := fold(s, runes.Predicate(func(rune) bool { return false }))
	return unsafeFileChars.ReplaceAllString(folded, "_")
}
