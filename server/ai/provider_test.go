package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCompletionBackend(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestProviderReady(t *testing.T) {
	assert.False(t, NewProvider(&Config{}).Ready())
	assert.True(t, NewProvider(&Config{APIKey: "key"}).Ready())
}

func TestProviderComplete(t *testing.T) {
	var gotModel string
	baseURL := startCompletionBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		resp := openai.ChatCompletionResponse{
			Model: req.Model,
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "What about a hash map?"}},
			},
			Usage: openai.Usage{TotalTokens: 17},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	p := NewProvider(&Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		ChatModel:  "gpt-4o-mini",
		MaxRetries: 1,
		Timeout:    5 * time.Second,
	})

	result, err := p.Complete(context.Background(), []Message{
		{Role: "system", Content: "You are a mentor."},
		{Role: "user", Content: "I'm stuck."},
	})
	require.NoError(t, err)
	assert.Equal(t, "What about a hash map?", result.Response)
	assert.Equal(t, 17, result.TokensUsed)
	assert.Equal(t, "gpt-4o-mini", gotModel)
}

func TestProviderCompleteBackendFailure(t *testing.T) {
	baseURL := startCompletionBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})

	p := NewProvider(&Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		MaxRetries: 1,
		Timeout:    5 * time.Second,
	})

	_, err := p.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}

func TestProviderCompleteEmptyChoices(t *testing.T) {
	baseURL := startCompletionBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{Model: "gpt-4o-mini"})
	})

	p := NewProvider(&Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		MaxRetries: 1,
		Timeout:    5 * time.Second,
	})

	_, err := p.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty chat response")
}
