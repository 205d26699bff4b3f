// Package llmtest 提供记录请求的假 LLM 客户端。
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"docchat-go/pkg/llm"
)

// Fake 返回固定回复，并记录每次收到的消息。
type Fake struct {
	Reply     string
	Err       error
	ModelName string

	mu       sync.Mutex
	requests [][]llm.Message
	params   []*llm.GenerationParams
}

// New 创建一个总是返回 reply 的 Fake。
func New(reply string) *Fake {
	return &Fake{Reply: reply, ModelName: "fake-llm"}
}

func (f *Fake) Model() string { return f.ModelName }

func (f *Fake) record(messages []llm.Message, gen *llm.GenerationParams) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, append([]llm.Message(nil), messages...))
	f.params = append(f.params, gen)
}

func (f *Fake) Chat(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	f.record(messages, gen)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, ctx.Err()
}

// StreamChatMessages 把回复按空格拆成多个分块依次写出。
func (f *Fake) StreamChatMessages(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, writer llm.MessageWriter) error {
	f.record(messages, gen)
	if f.Err != nil {
		return f.Err
	}
	parts := strings.SplitAfter(f.Reply, " ")
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
			return err
		}
	}
	return nil
}

// Requests 返回所有已记录的消息列表。
func (f *Fake) Requests() [][]llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]llm.Message(nil), f.requests...)
}

// LastParams 返回最近一次调用的生成参数。
func (f *Fake) LastParams() *llm.GenerationParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.params) == 0 {
		return nil
	}
	return f.params[len(f.params)-1]
}
