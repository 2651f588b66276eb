package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
	"github.com/glasshouse-ai/glasshouse/pkg/models"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

// PostgresStore stores documents in Postgres with pgvector embeddings.
// The seq column is assigned on first insert and never updated, which is
// what makes equal-similarity ordering stable across re-ingestion.
type PostgresStore struct {
	db        *sqlx.DB
	dimension int
	metrics   *observability.Metrics
	logger    observability.Logger
}

// NewPostgresStore creates a store over an open connection pool
func NewPostgresStore(db *sqlx.DB, dimension int, metrics *observability.Metrics, logger observability.Logger) *PostgresStore {
	if dimension <= 0 {
		dimension = models.EmbeddingDimension
	}
	return &PostgresStore{
		db:        db,
		dimension: dimension,
		metrics:   metrics,
		logger:    logger.WithPrefix("vectorstore"),
	}
}

// Upsert writes documents in one transaction. Existing IDs get fresh
// content and embeddings but keep their original seq.
func (s *PostgresStore) Upsert(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if err := doc.Validate(s.dimension); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Unavailable(err, "vectorstore.upsert")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		INSERT INTO documents (
			id, company, source_type, content, metadata, image_url, embedding, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			image_url = EXCLUDED.image_url,
			embedding = EXCLUDED.embedding`

	for _, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return errs.Internal(err, "vectorstore.upsert")
		}

		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := tx.ExecContext(ctx, query,
			doc.ID,
			doc.Company,
			string(doc.SourceType),
			doc.Content,
			metadataJSON,
			doc.ImageURL,
			formatVector(doc.Embedding),
			createdAt,
		); err != nil {
			return errs.Unavailable(err, "vectorstore.upsert")
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Unavailable(err, "vectorstore.upsert")
	}

	s.logger.Debug("Upserted documents", map[string]interface{}{
		"count": len(docs),
	})
	return nil
}

// Search runs a company-scoped nearest-neighbor query. Similarity is
// one minus cosine distance, descending, with insertion order breaking
// ties.
func (s *PostgresStore) Search(ctx context.Context, query SearchQuery) ([]models.Match, error) {
	if err := validateQuery(query, s.dimension); err != nil {
		return nil, err
	}
	if query.Limit == 0 {
		return []models.Match{}, nil
	}

	start := time.Now()
	matches, err := s.search(ctx, query, query.Limit)
	s.metrics.RecordSearch(len(matches), time.Since(start).Seconds(), err)
	return matches, err
}

func (s *PostgresStore) search(ctx context.Context, query SearchQuery, limit int) ([]models.Match, error) {
	sqlQuery := `
		SELECT
			id,
			company,
			source_type,
			content,
			metadata,
			image_url,
			created_at,
			1 - (embedding <=> $1::vector) AS similarity
		FROM documents
		WHERE company = $2`

	args := []interface{}{formatVector(query.Embedding), query.Company}

	if len(query.SourceTypes) > 0 {
		types := make([]string, len(query.SourceTypes))
		for i, st := range query.SourceTypes {
			types[i] = string(st)
		}
		sqlQuery += fmt.Sprintf(" AND source_type = ANY($%d)", len(args)+1)
		args = append(args, pq.Array(types))
	}

	if query.MinSimilarity > 0 {
		sqlQuery += fmt.Sprintf(" AND (1 - (embedding <=> $1::vector)) >= $%d", len(args)+1)
		args = append(args, query.MinSimilarity)
	}

	sqlQuery += fmt.Sprintf(" ORDER BY similarity DESC, seq ASC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, errs.Unavailable(err, "vectorstore.search")
	}
	defer func() {
		_ = rows.Close()
	}()

	var matches []models.Match
	for rows.Next() {
		var (
			doc          models.Document
			sourceType   string
			metadataJSON []byte
			imageURL     sql.NullString
			similarity   float64
		)
		if err := rows.Scan(
			&doc.ID,
			&doc.Company,
			&sourceType,
			&doc.Content,
			&metadataJSON,
			&imageURL,
			&doc.CreatedAt,
			&similarity,
		); err != nil {
			return nil, errs.Internal(err, "vectorstore.search")
		}

		doc.SourceType = models.SourceType(sourceType)
		doc.ImageURL = imageURL.String
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
				s.logger.Warn("Skipping unreadable document metadata", map[string]interface{}{
					"document_id": doc.ID,
				})
				doc.Metadata = nil
			}
		}

		matches = append(matches, models.Match{Document: &doc, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Unavailable(err, "vectorstore.search")
	}

	return matches, nil
}

// Stats returns per-source-type document counts for a company
func (s *PostgresStore) Stats(ctx context.Context, company string) (models.CoverageStats, error) {
	if company == "" {
		return nil, errs.Validation("vectorstore.stats", "company is required")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_type, COUNT(*) FROM documents WHERE company = $1 GROUP BY source_type`,
		company,
	)
	if err != nil {
		return nil, errs.Unavailable(err, "vectorstore.stats")
	}
	defer func() {
		_ = rows.Close()
	}()

	stats := models.NewCoverageStats()
	for rows.Next() {
		var sourceType string
		var count int
		if err := rows.Scan(&sourceType, &count); err != nil {
			return nil, errs.Internal(err, "vectorstore.stats")
		}
		stats[models.SourceType(sourceType)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Unavailable(err, "vectorstore.stats")
	}

	return stats, nil
}

// Companies lists every company with stored evidence
func (s *PostgresStore) Companies(ctx context.Context) ([]string, error) {
	var companies []string
	if err := s.db.SelectContext(ctx, &companies,
		`SELECT DISTINCT company FROM documents ORDER BY company`,
	); err != nil {
		return nil, errs.Unavailable(err, "vectorstore.companies")
	}
	return companies, nil
}

// DeleteCompany removes all evidence for a company
func (s *PostgresStore) DeleteCompany(ctx context.Context, company string) (int64, error) {
	if company == "" {
		return 0, errs.Validation("vectorstore.delete", "company is required")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE company = $1`, company)
	if err != nil {
		return 0, errs.Unavailable(err, "vectorstore.delete")
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errs.Internal(err, "vectorstore.delete")
	}
	return deleted, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// formatVector renders a vector in pgvector's input syntax
func formatVector(vector []float32) string {
	elements := make([]string, len(vector))
	for i, v := range vector {
		elements[i] = fmt.Sprintf("%f", v)
	}
	return "[" + strings.Join(elements, ",") + "]"
}

var _ Store = (*PostgresStore)(nil)
