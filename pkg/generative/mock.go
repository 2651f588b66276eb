package generative

import (
	"context"
	"fmt"
	"sync"
)

// MockGenerator returns queued responses in order and records the
// prompts it saw. It never touches the network.
type MockGenerator struct {
	mu      sync.Mutex
	queue   []string
	err     error
	prompts []string
}

// NewMockGenerator creates a mock with the given responses queued
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{queue: append([]string{}, responses...)}
}

// Enqueue appends a response to the queue
func (m *MockGenerator) Enqueue(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, response)
}

// Fail makes every subsequent Generate call return err
func (m *MockGenerator) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Prompts returns the prompts seen so far
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.prompts...)
}

// Name returns the provider name
func (m *MockGenerator) Name() string {
	return "mock"
}

// Model returns the pseudo model identifier
func (m *MockGenerator) Model() string {
	return "mock"
}

// Generate pops the next queued response
func (m *MockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.queue) == 0 {
		return "", fmt.Errorf("mock generator: no response queued for prompt %d", len(m.prompts))
	}

	response := m.queue[0]
	m.queue = m.queue[1:]
	return response, nil
}

// Close cleans up resources
func (m *MockGenerator) Close() error {
	return nil
}

var _ Generator = (*MockGenerator)(nil)
var _ Generator = (*GoogleGenerator)(nil)
