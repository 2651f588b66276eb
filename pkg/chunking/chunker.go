// Package chunking splits document text into bounded, overlapping segments
// sized for the embedding model's context window.
package chunking

import (
	"strings"
)

const (
	// DefaultChunkSize is the target segment length in characters.
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of characters carried over between
	// adjacent segments to preserve context across boundaries.
	DefaultOverlap = 150
)

// Chunk is a single segment of a larger document.
type Chunk struct {
	Text     string
	Index    int
	Metadata map[string]interface{}
}

// Chunker performs fixed-size character chunking with a preference for
// breaking at sentence boundaries in the back half of each window.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given size and overlap in
// characters. Non-positive values fall back to the defaults, and the
// overlap is clamped below the size so every step makes progress.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split divides text into overlapping chunks. Each chunk carries a copy of
// the supplied metadata plus its own chunk_index. Whitespace-only input
// yields no chunks.
func (c *Chunker) Split(text string, metadata map[string]interface{}) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []Chunk
	start := 0
	index := 0

	for start < len(runes) {
		end := start + c.size
		last := end >= len(runes)
		if last {
			end = len(runes)
		}
		window := runes[start:end]

		// Prefer to end mid-document chunks at a sentence boundary, as
		// long as the break falls in the back half of the window.
		if !last {
			if cut := lastSentenceBreak(window); cut > c.size/2 {
				window = window[:cut+1]
			}
		}

		trimmed := strings.TrimSpace(string(window))
		if trimmed != "" {
			chunks = append(chunks, Chunk{
				Text:     trimmed,
				Index:    index,
				Metadata: withChunkIndex(metadata, index),
			})
			index++
		}
		if last {
			break
		}

		step := len(window) - c.overlap
		if step <= 0 {
			step = 1 // Ensure progress
		}
		start += step
	}

	return chunks
}

// lastSentenceBreak returns the index of the final full stop that is
// followed by a space, or -1 when the window has no such boundary.
func lastSentenceBreak(window []rune) int {
	for i := len(window) - 2; i >= 0; i-- {
		if window[i] == '.' && window[i+1] == ' ' {
			return i
		}
	}
	return -1
}

func withChunkIndex(metadata map[string]interface{}, index int) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out["chunk_index"] = index
	return out
}
