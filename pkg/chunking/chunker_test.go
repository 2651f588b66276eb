package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Split(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		overlap    int
		text       string
		wantChunks int
	}{
		{
			name:       "small text single chunk",
			size:       1000,
			overlap:    150,
			text:       "A short disclosure about supply chain auditing.",
			wantChunks: 1,
		},
		{
			name:       "empty text",
			size:       1000,
			overlap:    150,
			text:       "",
			wantChunks: 0,
		},
		{
			name:       "whitespace only",
			size:       1000,
			overlap:    150,
			text:       "   \n\t  ",
			wantChunks: 0,
		},
		{
			name:       "long text multiple chunks",
			size:       100,
			overlap:    20,
			text:       strings.Repeat("x", 400),
			wantChunks: 5, // ceil(400 / (100-20))
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChunker(tt.size, tt.overlap)
			chunks := c.Split(tt.text, nil)
			assert.Len(t, chunks, tt.wantChunks)
			for i, ch := range chunks {
				assert.Equal(t, i, ch.Index)
				assert.Equal(t, i, ch.Metadata["chunk_index"])
				assert.NotEmpty(t, ch.Text)
			}
		})
	}
}

func TestChunker_SentenceBoundary(t *testing.T) {
	// Two sentences where the second straddles the window edge. The chunk
	// should break after the first full stop rather than mid-sentence.
	first := strings.Repeat("a", 70) + ". "
	second := strings.Repeat("b", 60) + "."
	c := NewChunker(100, 10)

	chunks := c.Split(first+second, nil)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 70)+".", chunks[0].Text)
	assert.True(t, strings.HasSuffix(chunks[1].Text, "b."))
}

func TestChunker_NoBoundaryInBackHalf(t *testing.T) {
	// The only full stop sits in the front half of the window, so the
	// chunker keeps the fixed-size cut instead.
	text := strings.Repeat("a", 20) + ". " + strings.Repeat("b", 200)
	c := NewChunker(100, 10)

	chunks := c.Split(text, nil)
	require.NotEmpty(t, chunks)
	assert.Len(t, []rune(chunks[0].Text), 100)
}

func TestChunker_OverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("0123456789", 30) // 300 chars, no sentence breaks
	c := NewChunker(100, 20)

	chunks := c.Split(text, nil)
	require.GreaterOrEqual(t, len(chunks), 3)
	// The tail of each chunk reappears at the head of the next one.
	tail := chunks[0].Text[len(chunks[0].Text)-20:]
	assert.True(t, strings.HasPrefix(chunks[1].Text, tail))
}

func TestChunker_MetadataCopied(t *testing.T) {
	meta := map[string]interface{}{"company": "Acme", "source_type": "news"}
	c := NewChunker(50, 10)

	chunks := c.Split(strings.Repeat("z", 120), meta)
	require.GreaterOrEqual(t, len(chunks), 2)

	chunks[0].Metadata["company"] = "mutated"
	assert.Equal(t, "Acme", meta["company"])
	assert.Equal(t, "Acme", chunks[1].Metadata["company"])
	assert.Equal(t, "news", chunks[1].Metadata["source_type"])
}

func TestNewChunker_Defaults(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Equal(t, DefaultChunkSize, c.size)
	assert.Equal(t, DefaultOverlap, c.overlap)

	// Overlap at or above size would stall the scan; it gets clamped.
	c = NewChunker(100, 100)
	assert.Equal(t, 50, c.overlap)
}
