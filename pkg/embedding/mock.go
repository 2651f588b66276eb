package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// MockProvider produces deterministic vectors without network calls.
// Each lowercased token is hashed into a bucket, so identical texts embed
// identically and texts sharing vocabulary land near each other. That is
// enough to exercise search ordering offline.
type MockProvider struct {
	dimensions int
}

// NewMockProvider creates a mock provider with the given vector width
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = googleDimensions
	}
	return &MockProvider{dimensions: dimensions}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Model returns the pseudo model identifier
func (p *MockProvider) Model() string {
	return fmt.Sprintf("mock-%d", p.dimensions)
}

// Dimensions returns the vector width this provider produces
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// Embed generates a deterministic unit vector for the text
func (p *MockProvider) Embed(_ context.Context, text string, _ TaskType) ([]float32, error) {
	vec := make([]float32, p.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum64()%uint64(p.dimensions)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// BatchEmbed generates deterministic vectors for multiple texts
func (p *MockProvider) BatchEmbed(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text, task)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Close cleans up resources
func (p *MockProvider) Close() error {
	return nil
}

var _ Provider = (*MockProvider)(nil)
var _ Provider = (*GoogleProvider)(nil)
