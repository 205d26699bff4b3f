// Package embedding provides clients for embedding models.
package embedding

import (
	"context"
	"fmt"

	"docchat-go/internal/config"
	"docchat-go/pkg/log"
)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// Model returns the embedding model name; vectors from different models must never share an index.
	Model() string
}

// NewClient creates an embedding client for the configured provider, wrapped with
// timeout, rate limit, retry and dimension checks.
func NewClient(ctx context.Context, cfg config.EmbeddingConfig) (*Resilient, error) {
	var (
		inner Client
		err   error
	)
	switch cfg.Provider {
	case "openai":
		inner = NewOpenAIClient(cfg)
	case "gemini":
		inner, err = NewGeminiClient(ctx, cfg)
	default:
		err = fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	log.Infof("[EmbeddingClient] provider: %s, model: %s, dimensions: %d", cfg.Provider, cfg.Model, cfg.Dimensions)
	return NewResilient(inner, ResilientOptions{
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RatePerSecond:  cfg.RateLimitPerSecond,
		Burst:          cfg.RateLimitBurst,
		Dimensions:     cfg.Dimensions,
		InitialBackoff: defaultInitialBackoff,
	}), nil
}
