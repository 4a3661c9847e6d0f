package semgraph

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder maps text to a vector by feature hashing its words and
// character trigrams. It needs no model artifact and is fully deterministic,
// so texts sharing vocabulary land close together.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns an embedder producing dims-sized vectors.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dims: dims}
}

// Close is a no-op.
func (h *HashEmbedder) Close() error { return nil }

// ModelID identifies the hashing scheme and width.
func (h *HashEmbedder) ModelID() string {
	return fmt.Sprintf("hash-%d", h.dims)
}

// EmbedText hashes one string into an L2-normalized vector.
func (h *HashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, h.dims)
	words := strings.FieldsFunc(strings.ToLower(NormalizeText(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h.add(vec, "w:"+w, 1)
		padded := []rune("^" + w + "$")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(vec, "t:"+string(padded[i:i+3]), 0.5)
		}
	}
	var ss float64
	for _, v := range vec {
		ss += v * v
	}
	out := make([]float32, h.dims)
	if ss == 0 {
		return out, nil
	}
	inv := 1 / math.Sqrt(ss)
	for i, v := range vec {
		out[i] = float32(v * inv)
	}
	return out, nil
}

// EmbedTexts embeds each string in order.
func (h *HashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, h, texts)
}

func (h *HashEmbedder) add(vec []float64, feature string, weight float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
