// Package generative calls the reasoning model and validates the
// structured output it returns.
package generative

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Generator represents a text generation provider (Google, mock, etc.)
type Generator interface {
	// Name returns the provider name (e.g., "google", "mock")
	Name() string

	// Model returns the model identifier
	Model() string

	// Generate produces a completion for the prompt
	Generate(ctx context.Context, prompt string) (string, error)

	// Close cleans up any resources
	Close() error
}

// ProviderError represents an error from a generation provider
type ProviderError struct {
	Provider    string         `json:"provider"`
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	StatusCode  int            `json:"status_code,omitempty"`
	RetryAfter  *time.Duration `json:"retry_after,omitempty"`
	IsRetryable bool           `json:"is_retryable"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error [%s]: %s", e.Provider, e.Code, e.Message)
}

// IsRetryableError reports whether the error is worth another attempt.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable
	}
	return true
}

func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
