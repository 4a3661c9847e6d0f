package semgraph

import (
	"strings"
	"unicode/utf8"
)

// Chunk splits raw text into lines, trims them and keeps those longer than
// minLen characters. Order is preserved; a chunk's index is its node id.
func Chunk(raw string, minLen int) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= minLen {
			continue
		}
		out = append(out, line)
	}
	return out
}
