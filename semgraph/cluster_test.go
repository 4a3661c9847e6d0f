package semgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterCount(t *testing.T) {
	assert.Equal(t, 3, ClusterCount(5, 3))
	assert.Equal(t, 5, ClusterCount(5, 5))
	assert.Equal(t, 5, ClusterCount(5, 12))
}

func TestClusterSeparatesGroups(t *testing.T) {
	vectors := [][]float32{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1},
	}
	cfg := DefaultClusterConfig()
	cfg.MaxClusters = 2
	labels, err := Cluster(vectors, cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, labels)
}

func TestClusterLabelsAreDense(t *testing.T) {
	vectors := [][]float32{
		{5, 5}, {0, 0}, {5, 5.1}, {0, 0.1}, {9, 0}, {9, 0.1}, {0, 9},
	}
	cfg := DefaultClusterConfig()
	cfg.MaxClusters = 3
	labels, err := Cluster(vectors, cfg)
	require.NoError(t, err)
	require.Len(t, labels, len(vectors))

	assert.Equal(t, 0, labels[0])
	seen := map[int]bool{}
	next := 0
	for _, l := range labels {
		if !seen[l] {
			assert.Equal(t, next, l, "labels must appear in order")
			seen[l] = true
			next++
		}
	}
	assert.LessOrEqual(t, len(seen), 3)
}

func TestClusterIdenticalVectors(t *testing.T) {
	vectors := make([][]float32, 5)
	for i := range vectors {
		vectors[i] = []float32{0.3, -0.2, 0.9}
	}
	labels, err := Cluster(vectors, DefaultClusterConfig())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, labels)
}

func TestClusterDeterministic(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3}, {2, 1, 0}, {0, 0, 1}, {5, 5, 5}, {4, 5, 6}, {9, 1, 1}, {1, 9, 1},
	}
	first, err := Cluster(vectors, DefaultClusterConfig())
	require.NoError(t, err)
	second, err := Cluster(vectors, DefaultClusterConfig())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClusterDimensionMismatch(t *testing.T) {
	_, err := Cluster([][]float32{{1, 2}, {1}}, DefaultClusterConfig())
	assert.Error(t, err)
}

func TestClusterEmpty(t *testing.T) {
	labels, err := Cluster(nil, DefaultClusterConfig())
	require.NoError(t, err)
	assert.Empty(t, labels)
}
