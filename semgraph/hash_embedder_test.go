package semgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func cosine(a, b []float32) float64 {
	return floats.Dot(toFloat64(a), toFloat64(b))
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(256)
	assert.Equal(t, "hash-256", e.ModelID())

	a, err := e.EmbedText(ctx, "Quarterly revenue grew eleven percent")
	require.NoError(t, err)
	require.Len(t, a, 256)
	assert.InDelta(t, 1.0, floats.Norm(toFloat64(a), 2), 1e-5)

	again, err := e.EmbedText(ctx, "quarterly REVENUE grew eleven percent")
	require.NoError(t, err)
	assert.Equal(t, a, again, "case must not matter")

	near, err := e.EmbedText(ctx, "Quarterly revenue grew twelve percent")
	require.NoError(t, err)
	far, err := e.EmbedText(ctx, "the kitten slept beside the fireplace")
	require.NoError(t, err)
	assert.Greater(t, cosine(a, near), cosine(a, far))
}

func TestHashEmbedderEmptyText(t *testing.T) {
	vec, err := NewHashEmbedder(32).EmbedText(context.Background(), "  !!  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 32), vec)
}

func TestEmbedTextsHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(32).EmbedTexts(ctx, []string{"one line of text"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(EmbedderConfig{Backend: BackendHash, Dimensions: 64}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hash-64", e.ModelID())

	_, err = NewEmbedder(EmbedderConfig{Backend: "word2vec"}, nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, cacheKey("m", "text"), cacheKey("m", "text"))
	assert.NotEqual(t, cacheKey("m", "text"), cacheKey("n", "text"))
}
