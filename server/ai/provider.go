// Package ai wraps the text-completion backend used by the chat endpoint.
// The relay never depends on this package; it exists so handlers talk to an
// interface instead of a concrete vendor client.
package ai

import (
	"context"
	"fmt"
	"math"
	"time"

	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// Config holds the completion provider configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		ChatModel:  "gpt-4o-mini",
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// Message represents a chat message.
type Message struct {
	Role    string
	Content string
}

// Result is one completion with usage accounting.
type Result struct {
	Response   string
	TokensUsed int
	Model      string
}

// CompletionService is the interface the chat endpoint consumes.
type CompletionService interface {
	// Complete generates the mentor's reply for the given conversation.
	Complete(ctx context.Context, messages []Message) (*Result, error)
	// Ready reports whether the backend is usable.
	Ready() bool
}

// Provider is the OpenAI-compatible implementation of CompletionService.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a new completion provider.
func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Ready reports whether an API key is configured.
func (p *Provider) Ready() bool {
	return p.config.APIKey != ""
}

// Complete performs a chat completion with retry.
func (p *Provider) Complete(ctx context.Context, messages []Message) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	var result *Result
	err := p.doWithRetry(ctx, func() error {
		llmMessages := make([]openai.ChatCompletionMessage, len(messages))
		for i, msg := range messages {
			llmMessages[i] = openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			}
		}

		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    p.config.ChatModel,
			Messages: llmMessages,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		result = &Result{
			Response:   resp.Choices[0].Message.Content,
			TokensUsed: resp.Usage.TotalTokens,
			Model:      resp.Model,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete chat: %w", err)
	}
	return result, nil
}

// doWithRetry executes a function with exponential backoff retry.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("completion request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

var _ CompletionService = (*Provider)(nil)
