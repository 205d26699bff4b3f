package llm

import (
	"context"
	"errors"
	"io"

	"github.com/gorilla/websocket"
	"github.com/sashabaranov/go-openai"

	"docchat-go/internal/config"
	"docchat-go/pkg/aierr"
)

type openAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for OpenAI or any OpenAI-compatible endpoint (DeepSeek etc).
func NewOpenAIClient(cfg config.LLMConfig) Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &openAIClient{client: openai.NewClientWithConfig(oc), model: cfg.Model}
}

func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) request(messages []Message, gen *GenerationParams, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	req := openai.ChatCompletionRequest{Model: c.model, Messages: msgs, Stream: stream}
	if gen != nil {
		if gen.Temperature != nil {
			req.Temperature = float32(*gen.Temperature)
		}
		if gen.TopP != nil {
			req.TopP = float32(*gen.TopP)
		}
		if gen.MaxTokens != nil {
			req.MaxTokens = *gen.MaxTokens
		}
	}
	return req
}

func (c *openAIClient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages, gen, false))
	if err != nil {
		return "", aierr.Classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", aierr.Classify(errors.New("no response generated"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(messages, gen, true))
	if err != nil {
		return aierr.Classify(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return aierr.Classify(err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		if err := writer.WriteMessage(websocket.TextMessage, []byte(resp.Choices[0].Delta.Content)); err != nil {
			return err
		}
	}
}
