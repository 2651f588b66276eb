package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/glasshouse-ai/glasshouse/pkg/models"
)

// MemoryStore is a brute-force in-process store with the same contract
// as PostgresStore. It backs tests and API-key-only local runs.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]*memoryEntry
	nextSeq   int64
}

type memoryEntry struct {
	doc models.Document
	seq int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(dimension int) *MemoryStore {
	if dimension <= 0 {
		dimension = models.EmbeddingDimension
	}
	return &MemoryStore{
		dimension: dimension,
		entries:   make(map[string]*memoryEntry),
	}
}

// Upsert writes documents. Existing IDs keep their insertion position.
func (s *MemoryStore) Upsert(_ context.Context, docs []*models.Document) error {
	for _, doc := range docs {
		if err := doc.Validate(s.dimension); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		if existing, ok := s.entries[doc.ID]; ok {
			existing.doc = *doc.Clone()
			continue
		}
		s.nextSeq++
		s.entries[doc.ID] = &memoryEntry{doc: *doc.Clone(), seq: s.nextSeq}
	}
	return nil
}

// Search scans all of a company's documents and ranks them by cosine
// similarity, breaking ties by insertion order.
func (s *MemoryStore) Search(_ context.Context, query SearchQuery) ([]models.Match, error) {
	if err := validateQuery(query, s.dimension); err != nil {
		return nil, err
	}
	if query.Limit == 0 {
		return []models.Match{}, nil
	}
	limit := query.Limit

	wantType := make(map[models.SourceType]bool, len(query.SourceTypes))
	for _, st := range query.SourceTypes {
		wantType[st] = true
	}

	s.mu.RLock()
	type scored struct {
		entry      *memoryEntry
		similarity float64
	}
	var candidates []scored
	for _, entry := range s.entries {
		if entry.doc.Company != query.Company {
			continue
		}
		if len(wantType) > 0 && !wantType[entry.doc.SourceType] {
			continue
		}
		similarity := cosineSimilarity(query.Embedding, entry.doc.Embedding)
		if query.MinSimilarity > 0 && similarity < query.MinSimilarity {
			continue
		}
		candidates = append(candidates, scored{entry: entry, similarity: similarity})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return candidates[i].entry.seq < candidates[j].entry.seq
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	matches := make([]models.Match, 0, len(candidates))
	for _, c := range candidates {
		doc := c.entry.doc.Clone()
		doc.Embedding = nil
		matches = append(matches, models.Match{Document: doc, Similarity: c.similarity})
	}
	return matches, nil
}

// Stats returns per-source-type document counts for a company
func (s *MemoryStore) Stats(_ context.Context, company string) (models.CoverageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.NewCoverageStats()
	for _, entry := range s.entries {
		if entry.doc.Company == company {
			stats[entry.doc.SourceType]++
		}
	}
	return stats, nil
}

// Companies lists every company with stored evidence
func (s *MemoryStore) Companies(_ context.Context) ([]string, error) {
	s.mu.RLock()
	seen := make(map[string]bool)
	for _, entry := range s.entries {
		seen[entry.doc.Company] = true
	}
	s.mu.RUnlock()

	companies := make([]string, 0, len(seen))
	for company := range seen {
		companies = append(companies, company)
	}
	sort.Strings(companies)
	return companies, nil
}

// DeleteCompany removes all evidence for a company
func (s *MemoryStore) DeleteCompany(_ context.Context, company string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, entry := range s.entries {
		if entry.doc.Company == company {
			delete(s.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Store = (*MemoryStore)(nil)
