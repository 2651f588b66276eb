package generative

import (
	"context"
	stderrors "errors"
	"time"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
	"github.com/glasshouse-ai/glasshouse/pkg/resilience"
)

// Service wraps a generator with outbound-call protection. Pipeline
// stages prompt through this type rather than a raw generator.
type Service struct {
	generator Generator
	guard     *resilience.Guard
	metrics   *observability.Metrics
	logger    observability.Logger
}

// NewService creates a generation service. guard may be nil, which
// disables call protection.
func NewService(generator Generator, guard *resilience.Guard, metrics *observability.Metrics, logger observability.Logger) *Service {
	return &Service{
		generator: generator,
		guard:     guard,
		metrics:   metrics,
		logger:    logger.WithPrefix("generative"),
	}
}

// Generate produces a completion for the prompt
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	var text string
	var err error
	if s.guard == nil {
		text, err = s.generator.Generate(ctx, prompt)
	} else {
		text, err = resilience.DoWithResult(ctx, s.guard, func(ctx context.Context) (string, error) {
			return s.generator.Generate(ctx, prompt)
		})
	}

	s.metrics.RecordGenerative(s.generator.Name(), time.Since(start).Seconds(), err)
	if err != nil {
		return "", s.classify(err, "generative.generate")
	}
	return text, nil
}

// GenerateJSON prompts the model and parses the structured response,
// validating it against the optional schema first.
func (s *Service) GenerateJSON(ctx context.Context, prompt string, validator *Validator, out interface{}) error {
	text, err := s.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	return ParseJSON(text, validator, out)
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
