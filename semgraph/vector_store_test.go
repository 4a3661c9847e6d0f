package semgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorStoreRoundTrip(t *testing.T) {
	store, err := newVectorStore(filepath.Join(t.TempDir(), "vectors"))
	require.NoError(t, err)

	key := cacheKey("model", "a line of text")
	_, ok, err := store.load(key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []float32{0.25, -1, 3.5}
	require.NoError(t, store.save(key, want))
	got, ok, err := store.load(key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestVectorStoreTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	store, err := newVectorStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "k.bin"), []byte{3, 0, 0, 0, 1}, 0o644))
	_, _, err = store.load("k")
	assert.Error(t, err)
}

func TestVectorStoreDisabled(t *testing.T) {
	store, err := newVectorStore("")
	require.NoError(t, err)
	require.NoError(t, store.save("k", []float32{1}))
	_, ok, err := store.load("k")
	require.NoError(t, err)
	assert.False(t, ok)
}
