package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/gorilla/websocket"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"docchat-go/internal/apperr"
	"docchat-go/internal/config"
	"docchat-go/pkg/aierr"
)

type geminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini chat client.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &geminiClient{client: client, model: cfg.Model}, nil
}

func (c *geminiClient) Model() string { return c.model }

// session 为每次调用创建独立的模型实例，避免并发请求互相覆盖生成参数。
func (c *geminiClient) session(messages []Message, gen *GenerationParams) (*genai.ChatSession, []genai.Part, error) {
	m := c.client.GenerativeModel(c.model)
	if gen != nil {
		if gen.Temperature != nil {
			m.SetTemperature(float32(*gen.Temperature))
		}
		if gen.TopP != nil {
			m.SetTopP(float32(*gen.TopP))
		}
		if gen.MaxTokens != nil {
			m.SetMaxOutputTokens(int32(*gen.MaxTokens))
		}
	}

	system, history, err := geminiHistory(messages)
	if err != nil {
		return nil, nil, err
	}
	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	cs := m.StartChat()
	cs.History = history[:len(history)-1]
	return cs, history[len(history)-1].Parts, nil
}

// geminiHistory 拆出系统提示，其余消息转换为 Gemini 的对话历史，最后一条必须来自用户。
func geminiHistory(messages []Message) (system []string, history []*genai.Content, err error) {
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(history) == 0 || history[len(history)-1].Role != "user" {
		return nil, nil, apperr.Wrap(apperr.KindUpstream, "last message must come from the user", apperr.ErrInvalidRequest)
	}
	return system, history, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		// 只取第一个候选
		break
	}
	return sb.String()
}

func (c *geminiClient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	cs, parts, err := c.session(messages, gen)
	if err != nil {
		return "", err
	}
	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return "", aierr.Classify(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", aierr.Classify(errors.New("no response generated"))
	}
	return responseText(resp), nil
}

func (c *geminiClient) StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	cs, parts, err := c.session(messages, gen)
	if err != nil {
		return err
	}
	iter := cs.SendMessageStream(ctx, parts...)
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return aierr.Classify(err)
		}
		text := responseText(resp)
		if text == "" {
			continue
		}
		if err := writer.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			return err
		}
	}
}

// Close releases the underlying connection.
func (c *geminiClient) Close() error {
	return c.client.Close()
}
