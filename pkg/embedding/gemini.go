package embedding

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"docchat-go/internal/config"
	"docchat-go/pkg/aierr"
	"docchat-go/pkg/log"
)

type geminiClient struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
}

// NewGeminiClient creates a Gemini embedding client.
func NewGeminiClient(ctx context.Context, cfg config.EmbeddingConfig) (Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &geminiClient{
		client: client,
		model:  client.EmbeddingModel(cfg.Model),
		name:   cfg.Model,
	}, nil
}

func (c *geminiClient) Model() string { return c.name }

func (c *geminiClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	log.Debugf("[EmbeddingClient] 调用 Gemini Embedding API, model: %s, input_len: %d", c.name, len(text))
	res, err := c.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, aierr.Classify(err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, aierr.Classify(errors.New("received empty embedding from api"))
	}
	return res.Embedding.Values, nil
}

// Close releases the underlying gRPC connection.
func (c *geminiClient) Close() error {
	return c.client.Close()
}
