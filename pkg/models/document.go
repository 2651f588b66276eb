// Package models defines the data model shared across the glasshouse
// services: evidence documents, the analysis state threaded through the
// agent pipeline, and the derived ranking records.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/glasshouse-ai/glasshouse/pkg/errors"
)

// EmbeddingDimension is the fixed width of the shared vector space. Every
// document in the store carries a vector of exactly this length.
const EmbeddingDimension = 768

// SourceType identifies the provenance of an ingested document.
type SourceType string

const (
	// SourceTypePatent marks chunks of filed technical disclosures.
	SourceTypePatent SourceType = "patent"
	// SourceTypeNews marks chunks of press releases and news coverage.
	SourceTypeNews SourceType = "news"
	// SourceTypeProductImage marks product imagery with a caption substitute.
	SourceTypeProductImage SourceType = "product_image"
)

// AllSourceTypes returns the closed set of source types in stable order.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceTypePatent, SourceTypeNews, SourceTypeProductImage}
}

// Valid reports whether s is a member of the closed source type set.
func (s SourceType) Valid() bool {
	switch s {
	case SourceTypePatent, SourceTypeNews, SourceTypeProductImage:
		return true
	}
	return false
}

// Document is one embedded evidence unit tied to a company and source type.
// Documents are immutable once written; re-ingesting identical content maps
// to the same ID and upserts instead of duplicating.
type Document struct {
	ID         string         `json:"id" db:"id"`
	Company    string         `json:"company" db:"company"`
	SourceType SourceType     `json:"source_type" db:"source_type"`
	Content    string         `json:"content" db:"content"`
	Metadata   map[string]any `json:"metadata,omitempty" db:"metadata"`
	ImageURL   string         `json:"image_url,omitempty" db:"image_url"`
	Embedding  []float32      `json:"embedding,omitempty" db:"embedding"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// DocumentID derives the deterministic identifier from the company, source
// type and the first 120 content characters: hex(sha256)[:24].
func DocumentID(company string, sourceType SourceType, content string) string {
	head := content
	if len(head) > 120 {
		head = head[:120]
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", company, sourceType, head)))
	return hex.EncodeToString(sum[:])[:24]
}

// NewDocument constructs a Document with its deterministic ID.
func NewDocument(company string, sourceType SourceType, content string, embedding []float32, metadata map[string]any, imageURL string) *Document {
	return &Document{
		ID:         DocumentID(company, sourceType, content),
		Company:    company,
		SourceType: sourceType,
		Content:    content,
		Metadata:   metadata,
		ImageURL:   imageURL,
		Embedding:  embedding,
		CreatedAt:  time.Now().UTC(),
	}
}

// Clone returns a deep copy safe to hand across goroutines.
func (d *Document) Clone() *Document {
	out := *d
	if d.Metadata != nil {
		out.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	if d.Embedding != nil {
		out.Embedding = append([]float32{}, d.Embedding...)
	}
	return &out
}

// Validate checks the document shape against the store's fixed dimension.
// Violations are rejected before any side effect.
func (d *Document) Validate(dimension int) error {
	const op = "document.Validate"
	if d.Company == "" {
		return errors.Validation(op, "company is required")
	}
	if !d.SourceType.Valid() {
		return errors.Validation(op, "unknown source_type %q", d.SourceType)
	}
	if d.SourceType == SourceTypeProductImage && d.ImageURL == "" {
		return errors.Validation(op, "product_image documents require image_url")
	}
	if len(d.Embedding) != dimension {
		return errors.Validation(op, "embedding dimension %d, want %d", len(d.Embedding), dimension)
	}
	return nil
}

// Match pairs a retrieved document with its similarity to the query vector.
// Similarity is cosine, reported in [-1, 1], larger is closer.
type Match struct {
	Document   *Document `json:"document"`
	Similarity float64   `json:"similarity"`
}

// CoverageStats counts indexed documents per source type for one company.
type CoverageStats map[SourceType]int

// NewCoverageStats returns stats zero-filled over the closed source type set.
func NewCoverageStats() CoverageStats {
	stats := make(CoverageStats, len(AllSourceTypes()))
	for _, st := range AllSourceTypes() {
		stats[st] = 0
	}
	return stats
}

// Total returns the document count across all source types.
func (c CoverageStats) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
