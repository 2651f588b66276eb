package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultGoogleEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultGoogleModel    = "text-embedding-004"
	googleDimensions      = 768

	// The batch endpoint rejects payloads above 100 requests.
	googleBatchLimit = 100
)

// Config contains configuration for the Google provider
type Config struct {
	APIKey         string        `json:"api_key,omitempty"`
	Model          string        `json:"model,omitempty"`
	Endpoint       string        `json:"endpoint,omitempty"`
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`
}

// GoogleProvider implements Provider against the Google Generative
// Language embedding API.
type GoogleProvider struct {
	config     Config
	httpClient *http.Client
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleEmbedRequest struct {
	Model    string        `json:"model"`
	Content  googleContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type googleBatchRequest struct {
	Requests []googleEmbedRequest `json:"requests"`
}

type googleEmbedding struct {
	Values []float32 `json:"values"`
}

type googleEmbedResponse struct {
	Embedding googleEmbedding `json:"embedding"`
}

type googleBatchResponse struct {
	Embeddings []googleEmbedding `json:"embeddings"`
}

// NewGoogleProvider creates a provider for the Generative Language API
func NewGoogleProvider(config Config) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	if config.Model == "" {
		config.Model = defaultGoogleModel
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultGoogleEndpoint
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}

	return &GoogleProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}, nil
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return "google"
}

// Model returns the configured model identifier
func (p *GoogleProvider) Model() string {
	return p.config.Model
}

// Dimensions returns the vector width this provider produces
func (p *GoogleProvider) Dimensions() int {
	return googleDimensions
}

// Embed generates an embedding for the given text
func (p *GoogleProvider) Embed(ctx context.Context, text string, task TaskType) ([]float32, error) {
	req := p.embedRequest(text, task)

	var resp googleEmbedResponse
	if err := p.doRequest(ctx, fmt.Sprintf("models/%s:embedContent", p.config.Model), req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embedding.Values) == 0 {
		return nil, &ProviderError{
			Provider: "google",
			Code:     "EMPTY_EMBEDDING",
			Message:  "no embedding data in response",
		}
	}

	return resp.Embedding.Values, nil
}

// BatchEmbed generates embeddings for multiple texts. Inputs beyond the
// API's batch limit are split across multiple calls.
func (p *GoogleProvider) BatchEmbed(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += googleBatchLimit {
		end := start + googleBatchLimit
		if end > len(texts) {
			end = len(texts)
		}

		batch := googleBatchRequest{Requests: make([]googleEmbedRequest, 0, end-start)}
		for _, text := range texts[start:end] {
			batch.Requests = append(batch.Requests, p.embedRequest(text, task))
		}

		var resp googleBatchResponse
		if err := p.doRequest(ctx, fmt.Sprintf("models/%s:batchEmbedContents", p.config.Model), batch, &resp); err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != end-start {
			return nil, &ProviderError{
				Provider: "google",
				Code:     "BATCH_SIZE_MISMATCH",
				Message:  fmt.Sprintf("requested %d embeddings, got %d", end-start, len(resp.Embeddings)),
			}
		}

		for _, emb := range resp.Embeddings {
			embeddings = append(embeddings, emb.Values)
		}
	}

	return embeddings, nil
}

// Close cleans up resources
func (p *GoogleProvider) Close() error {
	return nil
}

func (p *GoogleProvider) embedRequest(text string, task TaskType) googleEmbedRequest {
	return googleEmbedRequest{
		Model:    "models/" + p.config.Model,
		Content:  googleContent{Parts: []googlePart{{Text: text}}},
		TaskType: string(task),
	}
}

func (p *GoogleProvider) doRequest(ctx context.Context, path string, reqBody, out interface{}) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", p.config.Endpoint, path)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ProviderError{
			Provider:    "google",
			Code:        "REQUEST_FAILED",
			Message:     err.Error(),
			IsRetryable: true,
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return p.statusError(resp, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

func (p *GoogleProvider) statusError(resp *http.Response, body []byte) error {
	provErr := &ProviderError{
		Provider:    "google",
		Code:        "UNKNOWN_ERROR",
		Message:     string(body),
		StatusCode:  resp.StatusCode,
		IsRetryable: isRetryableStatusCode(resp.StatusCode),
	}

	var errorResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Status != "" {
		provErr.Code = errorResp.Error.Status
		provErr.Message = errorResp.Error.Message
	}

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			d := time.Duration(seconds) * time.Second
			provErr.RetryAfter = &d
		}
	}

	return provErr
}
