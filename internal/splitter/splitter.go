// Package splitter breaks compound raw values into their sub-values.
package splitter

import (
	"strings"

	"github.com/bean-lens/beanlens/internal/dictionary"
)

// Delimiters separate sub-values of a compound raw string. The Korean and
// CJK comma and middle-dot variants are included.
const Delimiters = ",/;|\n·ㆍ・、，；／"

func isDelimiter(r rune) bool {
	return strings.ContainsRune(Delimiters, r)
}

// Split returns the trimmed, non-empty pieces of raw for compound domains.
// Other domains, and strings without a delimiter, come back as a single
// element holding raw unchanged. A compound string that yields no non-empty
// piece also comes back as itself.
func Split(domain dictionary.Domain, raw string) []string {
	if !domain.Compound() || !strings.ContainsFunc(raw, isDelimiter) {
		return []string{raw}
	}

	var pieces []string
	for _, piece := range strings.FieldsFunc(raw, isDelimiter) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}
	if len(pieces) == 0 {
		return []string{raw}
	}
	return pieces
}
