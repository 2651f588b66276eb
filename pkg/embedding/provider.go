// Package embedding turns evidence text into fixed-dimension vectors and
// caches the results across analysis runs.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TaskType tells the provider how an embedding will be used so it can
// optimize the vector for storage or retrieval.
type TaskType string

const (
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
)

// Provider represents an embedding provider (Google, mock, etc.)
type Provider interface {
	// Name returns the provider name (e.g., "google", "mock")
	Name() string

	// Model returns the model identifier, used to namespace cache keys
	Model() string

	// Embed generates an embedding for the given text
	Embed(ctx context.Context, text string, task TaskType) ([]float32, error)

	// BatchEmbed generates embeddings for multiple texts in one call
	BatchEmbed(ctx context.Context, texts []string, task TaskType) ([][]float32, error)

	// Dimensions returns the vector width this provider produces
	Dimensions() int

	// Close cleans up any resources
	Close() error
}

// ProviderError represents an error from a provider
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

// IsRetryableError reports whether the error is a provider error worth
// retrying. Non-provider errors default to retryable so transport
// failures get another attempt.
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
