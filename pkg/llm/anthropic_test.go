package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tracelens/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProviderAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req AnthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-3-5-sonnet", req.Model)
		assert.Equal(t, systemPrompt, req.System)
		assert.Equal(t, 1000, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AnthropicResponse{
			ID:   "msg-1",
			Type: "message",
			Role: "assistant",
			Content: []AnthropicContent{
				{Type: "text", Text: "1. Cache the cart lookup"},
				{Type: "text", Text: "\n2. Batch the inventory calls"},
			},
			StopReason: "end_turn",
		})
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider("test-api-key", server.URL+"/v1", "claude-3-5-sonnet", 0.1, 0)
	require.NoError(t, err)

	result, err := provider.Analyze(context.Background(), "Why is checkout slow?")
	require.NoError(t, err)
	assert.Equal(t, "1. Cache the cart lookup\n2. Batch the inventory calls", result)
}

func TestAnthropicProviderAnalyzeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"type": "authentication_error", "message": "Invalid API key"}}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider("invalid-key", server.URL, "", 0.1, 1000)
	require.NoError(t, err)

	_, err = provider.Analyze(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (status 401)")
}

func TestAnthropicProviderNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "msg-1", "content": []}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider("test-key", server.URL, "claude-3-5-sonnet", 0.1, 1000)
	require.NoError(t, err)

	_, err = provider.Analyze(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content")
}

func TestAnthropicProviderFromConfig(t *testing.T) {
	_, err := NewAnthropicProvider("", "", "", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")

	provider, err := NewProvider(config.LLMConfig{
		Provider:       "Anthropic",
		Model:          "gpt-4o",
		AnthropicModel: "claude-3-5-haiku",
		APIKey:         "key",
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", provider.Name())
	assert.Equal(t, "claude-3-5-haiku", provider.(*AnthropicProvider).GetModel())
}
