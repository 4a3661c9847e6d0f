package semgraph

import "fmt"

// Assemble zips chunks, coordinates and labels into nodes and links each
// node to the next one. All three slices must be index-aligned.
func Assemble(chunks []string, coords []Coordinate, labels []int, cfg Config) (*Graph, error) {
	cfg.ApplyDefaults()
	if len(coords) != len(chunks) || len(labels) != len(chunks) {
		return nil, fmt.Errorf("misaligned stages: %d chunks, %d coordinates, %d labels",
			len(chunks), len(coords), len(labels))
	}
	g := &Graph{
		Nodes: make([]Node, len(chunks)),
		Links: make([]Link, 0, max(len(chunks)-1, 0)),
	}
	for i, chunk := range chunks {
		g.Nodes[i] = Node{
			ID:       i,
			Text:     truncate(chunk, cfg.DisplayLength) + cfg.Ellipsis,
			FullText: chunk,
			Group:    labels[i],
			FX:       coords[i][0] * cfg.CoordinateScale,
			FY:       coords[i][1] * cfg.CoordinateScale,
			FZ:       coords[i][2] * cfg.CoordinateScale,
		}
	}
	for i := 0; i+1 < len(chunks); i++ {
		g.Links = append(g.Links, Link{Source: i, Target: i + 1})
	}
	return g, nil
}

// truncate keeps at most n characters of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
