package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"tracelens/internal/config"
)

// OllamaProvider implements Provider for Ollama (local models)
type OllamaProvider struct {
	client      *api.Client
	model       string
	temperature float64
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(rawURL, model string, temperature float64) (*OllamaProvider, error) {
	if rawURL == "" {
		rawURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}

	base, err := url.Parse(strings.TrimSuffix(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &OllamaProvider{
		client: api.NewClient(base, &http.Client{
			Timeout: 300 * time.Second,
		}),
		model:       model,
		temperature: temperature,
	}, nil
}

// Analyze sends a prompt to Ollama and returns the full, non-streamed response.
func (p *OllamaProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		System: systemPrompt,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": p.temperature,
		},
	}

	var out strings.Builder
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Ollama API error: %w", err)
	}

	return out.String(), nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// GetModel returns the model name
func (p *OllamaProvider) GetModel() string {
	return p.model
}

// Health checks if Ollama is running
func (p *OllamaProvider) Health(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("Ollama not available: %w", err)
	}
	return nil
}

// NewOllamaProviderFromConfig creates an Ollama provider from config
func NewOllamaProviderFromConfig(cfg config.LLMConfig) (*OllamaProvider, error) {
	return NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.Temperature)
}
