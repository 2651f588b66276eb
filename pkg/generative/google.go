package generative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultGoogleEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultGoogleModel    = "gemini-1.5-pro"
)

// Config contains configuration for the Google generator
type Config struct {
	APIKey          string        `json:"api_key,omitempty"`
	Model           string        `json:"model,omitempty"`
	Endpoint        string        `json:"endpoint,omitempty"`
	RequestTimeout  time.Duration `json:"request_timeout,omitempty"`
	Temperature     float64       `json:"temperature,omitempty"`
	MaxOutputTokens int           `json:"max_output_tokens,omitempty"`
}

// GoogleGenerator implements Generator against the Google Generative
// Language API.
type GoogleGenerator struct {
	config     Config
	httpClient *http.Client
}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type googleGenerateRequest struct {
	Contents         []googleContent        `json:"contents"`
	GenerationConfig googleGenerationConfig `json:"generationConfig"`
}

type googleCandidate struct {
	Content      googleContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type googleGenerateResponse struct {
	Candidates []googleCandidate `json:"candidates"`
}

// NewGoogleGenerator creates a generator for the Generative Language API
func NewGoogleGenerator(config Config) (*GoogleGenerator, error) {
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
		config.RequestTimeout = 90 * time.Second
	}

	return &GoogleGenerator{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}, nil
}

// Name returns the provider name
func (g *GoogleGenerator) Name() string {
	return "google"
}

// Model returns the configured model identifier
func (g *GoogleGenerator) Model() string {
	return g.config.Model
}

// Generate produces a completion for the prompt
func (g *GoogleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := googleGenerateRequest{
		Contents: []googleContent{
			{Role: "user", Parts: []googlePart{{Text: prompt}}},
		},
		GenerationConfig: googleGenerationConfig{
			Temperature:     g.config.Temperature,
			MaxOutputTokens: g.config.MaxOutputTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.config.Endpoint, g.config.Model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.config.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{
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
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", g.statusError(resp, body)
	}

	var genResp googleGenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(genResp.Candidates) == 0 {
		return "", &ProviderError{
			Provider: "google",
			Code:     "EMPTY_RESPONSE",
			Message:  "no candidates in response",
		}
	}

	candidate := genResp.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return "", &ProviderError{
			Provider: "google",
			Code:     "SAFETY_BLOCKED",
			Message:  "response blocked by safety filters",
		}
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", &ProviderError{
			Provider: "google",
			Code:     "EMPTY_RESPONSE",
			Message:  "candidate contained no text",
		}
	}

	return sb.String(), nil
}

// Close cleans up resources
func (g *GoogleGenerator) Close() error {
	return nil
}

func (g *GoogleGenerator) statusError(resp *http.Response, body []byte) error {
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
