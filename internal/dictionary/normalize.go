package dictionary

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize prepares a raw string for dictionary lookup.
//
// The text is NFKC normalized and Unicode case folded, so Latin strings compare
// case-insensitively while Hangul and other caseless scripts are compared as-is.
// Underscores, hyphens and punctuation become spaces and runs of whitespace
// collapse to a single space.
func Normalize(raw string) string {
	text := norm.NFKC.String(raw)
	// A Caser keeps internal state, so one is built per call.
	text = cases.Fold().String(text)
	text = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			return r
		}
		return ' '
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
