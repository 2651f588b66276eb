// Package ingestion normalizes raw evidence submissions into embedded,
// searchable documents scoped to a company.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glasshouse-ai/glasshouse/pkg/chunking"
	"github.com/glasshouse-ai/glasshouse/pkg/embedding"
	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
	"github.com/glasshouse-ai/glasshouse/pkg/models"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
	"github.com/glasshouse-ai/glasshouse/pkg/vectorstore"
)

const (
	// DefaultConcurrency bounds how many evidence items are embedded and
	// written at the same time.
	DefaultConcurrency = 4
	// DefaultMaxBatchSize caps the number of items accepted per request.
	DefaultMaxBatchSize = 200
)

// Options tunes batch limits and chunking for a Service.
type Options struct {
	Concurrency  int
	ChunkSize    int
	ChunkOverlap int
	MaxBatchSize int
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = DefaultMaxBatchSize
	}
	return o
}

// SourceItem is one raw evidence submission. Text items (patents, news)
// carry their body in Content; image items carry an ImageURL plus a short
// Caption that stands in for the pixels.
type SourceItem struct {
	SourceType models.SourceType      `json:"source_type"`
	Title      string                 `json:"title,omitempty"`
	Content    string                 `json:"content,omitempty"`
	ImageURL   string                 `json:"image_url,omitempty"`
	Caption    string                 `json:"caption,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// SourceReport counts outcomes for a single source type within a batch.
type SourceReport struct {
	Ingested int `json:"ingested"`
	Failed   int `json:"failed"`
	Chunks   int `json:"chunks"`
}

// Report summarizes one ingestion batch. Sources only lists the types that
// appeared in the batch.
type Report struct {
	Company string                              `json:"company"`
	Items   int                                 `json:"items"`
	Chunks  int                                 `json:"chunks"`
	Sources map[models.SourceType]*SourceReport `json:"sources"`
}

func newReport(company string, items int) *Report {
	return &Report{
		Company: company,
		Items:   items,
		Sources: make(map[models.SourceType]*SourceReport),
	}
}

func (r *Report) source(st models.SourceType) *SourceReport {
	sr, ok := r.Sources[st]
	if !ok {
		sr = &SourceReport{}
		r.Sources[st] = sr
	}
	return sr
}

// Failures returns the total number of failed items across source types.
func (r *Report) Failures() int {
	total := 0
	for _, sr := range r.Sources {
		total += sr.Failed
	}
	return total
}

// Service embeds evidence items and writes them to the vector store.
type Service struct {
	embedder *embedding.Service
	store    vectorstore.Store
	chunker  *chunking.Chunker
	opts     Options
	metrics  *observability.Metrics
	logger   observability.Logger
}

// NewService wires an ingestion pipeline over the given embedder and store.
func NewService(embedder *embedding.Service, store vectorstore.Store, opts Options, metrics *observability.Metrics, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	opts = opts.withDefaults()
	return &Service{
		embedder: embedder,
		store:    store,
		chunker:  chunking.NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		opts:     opts,
		metrics:  metrics,
		logger:   logger.WithPrefix("ingestion"),
	}
}

// Ingest validates, chunks, embeds, and stores a batch of evidence items
// for one company. Items are processed concurrently under a bounded
// semaphore, and a single bad item is counted in the report rather than
// aborting the batch. The returned report breaks outcomes down by source
// type.
func (s *Service) Ingest(ctx context.Context, company string, items []SourceItem) (*Report, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, errs.Validation("ingestion.ingest", "company is required")
	}
	if len(items) == 0 {
		return nil, errs.Validation("ingestion.ingest", "at least one item is required")
	}
	if len(items) > s.opts.MaxBatchSize {
		return nil, errs.Validation("ingestion.ingest", "batch of %d items exceeds the limit of %d", len(items), s.opts.MaxBatchSize)
	}

	start := time.Now()
	report := newReport(company, len(items))

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, s.opts.Concurrency)
	)
	for i := range items {
		item := items[i]
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			chunks, err := s.ingestItem(ctx, company, item)

			mu.Lock()
			defer mu.Unlock()
			sr := report.source(item.SourceType)
			if err != nil {
				sr.Failed++
				s.logger.Warn("Evidence item rejected", map[string]interface{}{
					"company":     company,
					"item":        idx,
					"source_type": string(item.SourceType),
					"error":       err.Error(),
				})
				return
			}
			sr.Ingested++
			sr.Chunks += chunks
			report.Chunks += chunks
		}(i)
	}
	wg.Wait()

	for st, sr := range report.Sources {
		s.metrics.RecordIngestion(string(st), sr.Ingested, sr.Failed, sr.Chunks)
	}
	s.metrics.RecordIngestionBatch(time.Since(start).Seconds())

	s.logger.Info("Ingestion batch complete", map[string]interface{}{
		"company": company,
		"items":   len(items),
		"chunks":  report.Chunks,
		"failed":  report.Failures(),
	})
	return report, nil
}

// ingestItem builds the documents for one item, embeds them, and writes
// them to the store. It returns the number of stored chunks.
func (s *Service) ingestItem(ctx context.Context, company string, item SourceItem) (int, error) {
	docs, err := s.buildDocuments(ctx, company, item)
	if err != nil {
		return 0, err
	}
	if err := s.store.Upsert(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *Service) buildDocuments(ctx context.Context, company string, item SourceItem) ([]*models.Document, error) {
	if !item.SourceType.Valid() {
		return nil, errs.Validation("ingestion.ingest", "unknown source type %q", item.SourceType)
	}
	if item.SourceType == models.SourceTypeProductImage {
		return s.buildImageDocument(ctx, company, item)
	}
	return s.buildTextDocuments(ctx, company, item)
}

// buildTextDocuments chunks the combined title and body, then embeds every
// chunk in a single batch. Each chunk document inherits the item metadata
// plus its chunk_index and the parent title.
func (s *Service) buildTextDocuments(ctx context.Context, company string, item SourceItem) ([]*models.Document, error) {
	text := textBody(item)
	if text == "" {
		return nil, errs.Validation("ingestion.ingest", "%s items require title or content", item.SourceType)
	}

	chunks := s.chunker.Split(text, itemMetadata(item))
	if len(chunks) == 0 {
		return nil, errs.Validation("ingestion.ingest", "%s item produced no chunks", item.SourceType)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	docs := make([]*models.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = models.NewDocument(company, item.SourceType, ch.Text, vectors[i], ch.Metadata, "")
	}
	return docs, nil
}

// buildImageDocument embeds the caption as a stand-in for the image itself.
// Images are never chunked.
func (s *Service) buildImageDocument(ctx context.Context, company string, item SourceItem) ([]*models.Document, error) {
	if strings.TrimSpace(item.ImageURL) == "" {
		return nil, errs.Validation("ingestion.ingest", "product_image items require image_url")
	}
	caption := strings.TrimSpace(item.Caption)
	if caption == "" {
		caption = strings.TrimSpace(item.Title)
	}
	if caption == "" {
		return nil, errs.Validation("ingestion.ingest", "product_image items require a caption or title")
	}

	vector, err := s.embedder.EmbedDocument(ctx, caption)
	if err != nil {
		return nil, fmt.Errorf("embedding caption: %w", err)
	}
	doc := models.NewDocument(company, item.SourceType, caption, vector, itemMetadata(item), strings.TrimSpace(item.ImageURL))
	return []*models.Document{doc}, nil
}

// Stats reports per-source-type document counts for a company.
func (s *Service) Stats(ctx context.Context, company string) (models.CoverageStats, error) {
	return s.store.Stats(ctx, company)
}

// Companies lists every company with at least one stored document.
func (s *Service) Companies(ctx context.Context) ([]string, error) {
	return s.store.Companies(ctx)
}

// textBody joins title and content into the text that gets chunked. A
// title-only item is still usable evidence.
func textBody(item SourceItem) string {
	title := strings.TrimSpace(item.Title)
	body := strings.TrimSpace(item.Content)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + "\n\n" + body
	}
}

// itemMetadata copies the caller metadata and records the title so chunks
// stay traceable to their parent item.
func itemMetadata(item SourceItem) map[string]interface{} {
	md := make(map[string]interface{}, len(item.Metadata)+1)
	for k, v := range item.Metadata {
		md[k] = v
	}
	if title := strings.TrimSpace(item.Title); title != "" {
		md["title"] = title
	}
	return md
}
