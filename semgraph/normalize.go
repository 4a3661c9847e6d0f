package semgraph

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText is the form every embedder sees and every cache key is built
// from: NFKC folded, trimmed, and stripped of control characters other than
// tab and newline. Full-width and half-width spellings of a line therefore
// share one vector.
func NormalizeText(text string) string {
	return strings.Map(keepPrintable, strings.TrimSpace(norm.NFKC.String(text)))
}

func keepPrintable(r rune) rune {
	if r != '\n' && r != '\t' && unicode.IsControl(r) {
		return -1
	}
	return r
}
