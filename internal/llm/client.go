// Package llm constructs the language-model and embedding clients.
// Both are plain values built once at startup and passed down by
// interface; nothing in here is a global.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/punchagency/ycc-assist/internal/config"
	"github.com/punchagency/ycc-assist/internal/domain"
)

// NewChatModel builds the chat-completion client against any
// OpenAI-compatible endpoint.
func NewChatModel(cfg config.LLMConfig) (llms.Model, error) {
	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return model, nil
}

// Embedder converts text to a fixed-length vector. A failed or
// unconfigured provider returns an error that callers treat as
// "context unavailable", never as fatal.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder builds the embedding provider. When no API key is
// configured it returns a disabled provider so the service degrades to
// context-free operation instead of failing at startup.
func NewEmbedder(cfg config.LLMConfig, logger *zap.Logger) (Embedder, error) {
	if cfg.APIKey == "" {
		logger.Warn("llm api key not configured, embedding disabled")
		return disabledEmbedder{}, nil
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ChatModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &openAIEmbedder{embedder: embedder, logger: logger}, nil
}

type openAIEmbedder struct {
	embedder embeddings.Embedder
	logger   *zap.Logger
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Warn("embedding failed", zap.Error(err))
		return nil, err
	}
	return vec, nil
}

type disabledEmbedder struct{}

func (disabledEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, domain.ErrEmbeddingDisabled
}
