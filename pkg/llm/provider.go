// Package llm defines the interfaces and factories for connecting to various Large Language Models.
package llm

import (
	"context"
	"fmt"

	"tracelens/internal/config"
)

// Provider establishes the common contract for all supported LLM integrations.
type Provider interface {
	Analyze(ctx context.Context, prompt string) (string, error)
	Name() string
}

// ProviderType represents a supported backend LLM provider.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderOllama    ProviderType = "ollama"
	ProviderAnthropic ProviderType = "anthropic"
)

// NewProvider evaluates the configuration to instantiate and route to the correct LLM backend implementation.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	providerType := ProviderType(cfg.ProviderType())

	switch providerType {
	case ProviderOpenAI:
		return NewOpenAIProviderFromConfig(cfg)
	case ProviderOllama:
		return NewOllamaProviderFromConfig(cfg)
	case ProviderAnthropic:
		return NewAnthropicProviderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
