// Package llm provides clients for chat-completion style Large Language Models.
package llm

import (
	"context"
	"fmt"

	"docchat-go/internal/config"
	"docchat-go/pkg/log"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageWriter defines an interface for writing WebSocket messages.
// This allows both a standard websocket.Conn and an interceptor to be used.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为，nil 字段使用模型默认值。
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Client defines the interface for an LLM client.
type Client interface {
	// Chat 返回模型的完整回复。
	Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
	// StreamChatMessages 将流式分块逐个写入 writer（websocket.TextMessage）。
	StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error
	Model() string
}

// NewClient creates an LLM client based on the provider in the config.
func NewClient(ctx context.Context, cfg config.LLMConfig) (*Resilient, error) {
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
		err = fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	log.Infof("[LLMClient] provider: %s, model: %s", cfg.Provider, cfg.Model)
	return NewResilient(inner, cfg.Timeout, cfg.MaxRetries), nil
}

// ParamsFromConfig 将配置中的非零生成参数转换为 GenerationParams。
func ParamsFromConfig(g config.LLMGenerationConfig) *GenerationParams {
	var gp GenerationParams
	if g.Temperature != 0 {
		t := g.Temperature
		gp.Temperature = &t
	}
	if g.TopP != 0 {
		p := g.TopP
		gp.TopP = &p
	}
	if g.MaxTokens != 0 {
		m := g.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}
