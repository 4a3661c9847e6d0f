package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/semgraph/semgraph"
)

func TestResolveOutputPath(t *testing.T) {
	dir := t.TempDir()

	explicit := filepath.Join(dir, "nested", "graph.json")
	got, err := resolveOutputPath(explicit, "")
	require.NoError(t, err)
	assert.Equal(t, explicit, got)
	assert.DirExists(t, filepath.Join(dir, "nested"))

	got, err = resolveOutputPath("", filepath.Join(dir, "graphs"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "graphs"), filepath.Dir(got))
	assert.True(t, strings.HasPrefix(filepath.Base(got), "graph_"))
	assert.Equal(t, ".json", filepath.Ext(got))
}

func TestWriteGraphJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	graph := &semgraph.Graph{
		Nodes: []semgraph.Node{{ID: 0, Text: "a...", FullText: "a"}},
		Links: []semgraph.Link{},
	}
	require.NoError(t, writeGraphJSON(path, graph))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"full_text": "a"`)
	assert.Contains(t, string(data), `"links": []`)
}

func TestPrintSummary(t *testing.T) {
	graph := &semgraph.Graph{Nodes: []semgraph.Node{
		{ID: 0, FullText: "first line", Group: 0},
		{ID: 1, FullText: "second line", Group: 1},
		{ID: 2, FullText: strings.Repeat("x", 80), Group: 0},
	}}
	var out bytes.Buffer
	printSummary(&out, graph)

	text := out.String()
	assert.Contains(t, text, "3 lines in 2 groups")
	assert.Contains(t, text, "group 0 (2)")
	assert.Contains(t, text, "group 1 (1)")
	assert.Contains(t, text, strings.Repeat("x", 60)+"…")
}
