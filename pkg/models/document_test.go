package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasshouse-ai/glasshouse/pkg/errors"
)

func testEmbedding(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) / float32(dim)
	}
	return v
}

func TestDocumentIDDeterministic(t *testing.T) {
	a := DocumentID("Acme", SourceTypePatent, "autonomous guidance system")
	b := DocumentID("Acme", SourceTypePatent, "autonomous guidance system")
	assert.Equal(t, a, b)
	assert.Len(t, a, 24)

	// Different company, type or content changes the ID.
	assert.NotEqual(t, a, DocumentID("Other", SourceTypePatent, "autonomous guidance system"))
	assert.NotEqual(t, a, DocumentID("Acme", SourceTypeNews, "autonomous guidance system"))
	assert.NotEqual(t, a, DocumentID("Acme", SourceTypePatent, "different content"))
}

func TestDocumentIDUsesContentHead(t *testing.T) {
	head := strings.Repeat("x", 120)
	a := DocumentID("Acme", SourceTypeNews, head+" tail one")
	b := DocumentID("Acme", SourceTypeNews, head+" tail two")
	// Only the first 120 characters participate.
	assert.Equal(t, a, b)
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument("Acme", SourceTypeNews, "press release", testEmbedding(EmbeddingDimension), map[string]any{"title": "t"}, "")
	assert.Equal(t, DocumentID("Acme", SourceTypeNews, "press release"), doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())
	require.NoError(t, doc.Validate(EmbeddingDimension))
}

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Document)
		wantErr bool
	}{
		{name: "valid text", mutate: func(d *Document) {}},
		{name: "valid image", mutate: func(d *Document) {
			d.SourceType = SourceTypeProductImage
			d.ImageURL = "https://example.com/p.png"
		}},
		{name: "missing company", mutate: func(d *Document) { d.Company = "" }, wantErr: true},
		{name: "unknown source type", mutate: func(d *Document) { d.SourceType = "blog" }, wantErr: true},
		{name: "image without url", mutate: func(d *Document) { d.SourceType = SourceTypeProductImage }, wantErr: true},
		{name: "short embedding", mutate: func(d *Document) { d.Embedding = testEmbedding(512) }, wantErr: true},
		{name: "nil embedding", mutate: func(d *Document) { d.Embedding = nil }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := NewDocument("Acme", SourceTypeNews, "content", testEmbedding(EmbeddingDimension), nil, "")
			tt.mutate(doc)
			err := doc.Validate(EmbeddingDimension)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSourceTypeValid(t *testing.T) {
	for _, st := range AllSourceTypes() {
		assert.True(t, st.Valid(), string(st))
	}
	assert.False(t, SourceType("webpage").Valid())
	assert.False(t, SourceType("").Valid())
}

func TestCoverageStats(t *testing.T) {
	stats := NewCoverageStats()
	require.Len(t, stats, 3)
	assert.Equal(t, 0, stats[SourceTypePatent])
	assert.Equal(t, 0, stats.Total())

	stats[SourceTypePatent] = 3
	stats[SourceTypeNews] = 2
	assert.Equal(t, 5, stats.Total())
}
