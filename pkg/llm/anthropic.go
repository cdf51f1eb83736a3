package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tracelens/internal/config"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider implements Provider on the Anthropic Messages API.
type AnthropicProvider struct {
	client      *AnthropicClient
	model       string
	temperature float64
	maxTokens   int
}

// AnthropicClient holds the endpoint and credentials.
type AnthropicClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// AnthropicMessage is one conversational turn.
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicRequest is the body of POST /messages.
type AnthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []AnthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
}

// AnthropicResponse is the body returned by POST /messages.
type AnthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []AnthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      AnthropicUsage     `json:"usage"`
}

// AnthropicContent is one generated block.
type AnthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AnthropicUsage reports token consumption.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// NewAnthropicProvider creates an Anthropic provider. An empty baseURL targets api.anthropic.com.
// The API requires max_tokens, so zero falls back to 1000.
func NewAnthropicProvider(apiKey, baseURL, model string, temperature float64, maxTokens int) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	return &AnthropicProvider{
		client: &AnthropicClient{
			apiKey:  apiKey,
			baseURL: strings.TrimSuffix(baseURL, "/"),
			client: &http.Client{
				Timeout: 60 * time.Second,
			},
		},
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Analyze sends the prompt as a single user turn and returns the text blocks of the reply.
func (p *AnthropicProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(AnthropicRequest{
		Model:       p.model,
		System:      systemPrompt,
		Messages:    []AnthropicMessage{{Role: "user", Content: prompt}},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.client.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.client.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var anthropicResp AnthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	var text strings.Builder
	for _, c := range anthropicResp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return text.String(), nil
}

// Name returns "anthropic".
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// GetModel returns the model name
func (p *AnthropicProvider) GetModel() string {
	return p.model
}

// NewAnthropicProviderFromConfig creates an Anthropic provider from config.
// AnthropicModel wins over Model, whose default names an OpenAI model.
func NewAnthropicProviderFromConfig(cfg config.LLMConfig) (*AnthropicProvider, error) {
	model := cfg.AnthropicModel
	if model == "" {
		model = cfg.Model
	}
	return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, model, cfg.Temperature, cfg.MaxTokens)
}
