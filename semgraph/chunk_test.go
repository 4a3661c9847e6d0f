package semgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "keeps long lines in order",
			raw:  "first line is long enough\nshort\n   padded line here ok   \n",
			want: []string{"first line is long enough", "padded line here ok"},
		},
		{
			name: "length boundary is exclusive",
			raw:  "abcdefghij\nabcdefghijk",
			want: []string{"abcdefghijk"},
		},
		{
			name: "windows line endings are trimmed",
			raw:  "carriage return line\r\nanother long line\r\n",
			want: []string{"carriage return line", "another long line"},
		},
		{
			name: "counts characters not bytes",
			raw:  "日本語のテキストです。\n日本語のテキスト",
			want: []string{"日本語のテキストです。"},
		},
		{
			name: "blank input",
			raw:  "\n\n   \n",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.raw, 10))
		})
	}
}
