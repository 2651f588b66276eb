// Package vectorstore persists evidence documents and serves
// company-scoped nearest-neighbor search over their embeddings.
package vectorstore

import (
	"context"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
	"github.com/glasshouse-ai/glasshouse/pkg/models"
)

// SearchQuery describes one nearest-neighbor lookup. Company is
// mandatory; evidence never crosses company boundaries. A zero Limit
// asks for nothing and yields an empty result; a negative Limit is
// rejected.
type SearchQuery struct {
	Company       string
	Embedding     []float32
	SourceTypes   []models.SourceType
	Limit         int
	MinSimilarity float64
}

// Store is the persistence contract for evidence documents.
type Store interface {
	// Upsert writes documents, replacing content for existing IDs while
	// preserving their original insertion position.
	Upsert(ctx context.Context, docs []*models.Document) error

	// Search returns the closest documents for the query, most similar
	// first. Equal similarities keep insertion order.
	Search(ctx context.Context, query SearchQuery) ([]models.Match, error)

	// Stats returns per-source-type document counts for a company.
	Stats(ctx context.Context, company string) (models.CoverageStats, error)

	// Companies lists every company with stored evidence.
	Companies(ctx context.Context) ([]string, error)

	// DeleteCompany removes all evidence for a company and returns the
	// number of documents removed.
	DeleteCompany(ctx context.Context, company string) (int64, error)

	// Close releases the underlying resources.
	Close() error
}

// validateQuery applies the shared query rules for all implementations.
func validateQuery(query SearchQuery, dimension int) error {
	if query.Company == "" {
		return errs.Validation("vectorstore.search", "company is required")
	}
	if query.Limit < 0 {
		return errs.Validation("vectorstore.search", "limit must not be negative, got %d", query.Limit)
	}
	if len(query.Embedding) != dimension {
		return errs.Validation("vectorstore.search", "embedding has %d dimensions, store requires %d", len(query.Embedding), dimension)
	}
	for _, st := range query.SourceTypes {
		if !st.Valid() {
			return errs.Validation("vectorstore.search", "unknown source type %q", st)
		}
	}
	return nil
}
