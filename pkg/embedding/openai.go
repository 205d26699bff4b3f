package embedding

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"docchat-go/internal/config"
	"docchat-go/pkg/aierr"
	"docchat-go/pkg/log"
)

type openAIClient struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIClient creates a client for the OpenAI (or any compatible) embeddings API.
func NewOpenAIClient(cfg config.EmbeddingConfig) Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &openAIClient{
		client:     openai.NewClientWithConfig(oc),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (c *openAIClient) Model() string { return c.model }

// CreateEmbedding calls the embeddings endpoint for a single input.
func (c *openAIClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	log.Debugf("[EmbeddingClient] 调用 OpenAI Embedding API, model: %s, input_len: %d", c.model, len(text))
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, aierr.Classify(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, aierr.Classify(errors.New("received empty embedding from api"))
	}
	return resp.Data[0].Embedding, nil
}
