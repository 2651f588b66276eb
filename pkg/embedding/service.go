package embedding

import (
	"context"
	stderrors "errors"
	"time"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
	"github.com/glasshouse-ai/glasshouse/pkg/resilience"
)

// Service wraps a provider with caching and outbound-call protection.
// All pipeline code embeds through this type rather than a raw provider.
type Service struct {
	provider Provider
	cache    *Cache
	guard    *resilience.Guard
	metrics  *observability.Metrics
	logger   observability.Logger
}

// NewService creates an embedding service. cache and guard may be nil,
// which disables caching and call protection respectively.
func NewService(provider Provider, cache *Cache, guard *resilience.Guard, metrics *observability.Metrics, logger observability.Logger) *Service {
	return &Service{
		provider: provider,
		cache:    cache,
		guard:    guard,
		metrics:  metrics,
		logger:   logger.WithPrefix("embedding"),
	}
}

// Dimensions returns the provider's vector width
func (s *Service) Dimensions() int {
	return s.provider.Dimensions()
}

// EmbedDocument embeds evidence text for storage
func (s *Service) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, TaskRetrievalDocument)
}

// EmbedQuery embeds a search query
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, TaskRetrievalQuery)
}

// EmbedDocuments embeds a batch of evidence texts, consulting the cache
// per text and only sending misses to the provider.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIndexes []int

	for i, text := range texts {
		key := CacheKey(s.provider.Model(), TaskRetrievalDocument, text)
		if s.cache != nil {
			if vec, ok := s.cache.Get(ctx, key); ok {
				vectors[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	start := time.Now()
	embedded, err := guardedCall(ctx, s.guard, func(ctx context.Context) ([][]float32, error) {
		return s.provider.BatchEmbed(ctx, missTexts, TaskRetrievalDocument)
	})
	s.metrics.RecordEmbedding(s.provider.Name(), time.Since(start).Seconds(), err)
	if err != nil {
		return nil, s.classify(err, "embedding.batch")
	}
	if len(embedded) != len(missTexts) {
		return nil, errs.Newf(errs.ClassSchema, "embedding.batch", "provider returned %d vectors for %d texts", len(embedded), len(missTexts))
	}

	for j, vec := range embedded {
		vectors[missIndexes[j]] = vec
		if s.cache != nil {
			s.cache.Put(ctx, CacheKey(s.provider.Model(), TaskRetrievalDocument, missTexts[j]), vec)
		}
	}

	return vectors, nil
}

func (s *Service) embed(ctx context.Context, text string, task TaskType) ([]float32, error) {
	key := CacheKey(s.provider.Model(), task, text)
	if s.cache != nil {
		if vec, ok := s.cache.Get(ctx, key); ok {
			return vec, nil
		}
	}

	start := time.Now()
	vec, err := guardedCall(ctx, s.guard, func(ctx context.Context) ([]float32, error) {
		return s.provider.Embed(ctx, text, task)
	})
	s.metrics.RecordEmbedding(s.provider.Name(), time.Since(start).Seconds(), err)
	if err != nil {
		return nil, s.classify(err, "embedding.embed")
	}

	if s.cache != nil {
		s.cache.Put(ctx, key, vec)
	}
	return vec, nil
}

func guardedCall[T any](ctx context.Context, g *resilience.Guard, fn func(context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	return resilience.DoWithResult(ctx, g, fn)
}

// classify maps transport-level failures onto the error classes the
// pipeline keys its abort decisions on.
func (s *Service) classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errs.Timeout(err, op)
	}
	if resilience.IsBreakerOpen(err) {
		return errs.Unavailable(err, op)
	}

	var pe *ProviderError
	if stderrors.As(err, &pe) {
		class := errs.ClassifyHTTPStatus(pe.StatusCode)
		if class == errs.ClassUnknown {
			if pe.IsRetryable {
				class = errs.ClassUnavailable
			} else {
				class = errs.ClassInternal
			}
		}
		ce := errs.Wrap(err, class, op, pe.Message)
		if pe.RetryAfter != nil {
			ce = ce.WithRetryAfter(*pe.RetryAfter)
		}
		return ce
	}

	return errs.Unavailable(err, op)
}
