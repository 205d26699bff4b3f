package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"docchat-go/internal/apperr"
	"docchat-go/internal/config"
	"docchat-go/internal/session"
	"docchat-go/internal/vectorindex"
	"docchat-go/pkg/embedding"
	"docchat-go/pkg/kafka"
	"docchat-go/pkg/llm"
	"docchat-go/pkg/log"
)

// ChatService 定义了基于检索增强的问答操作。
type ChatService interface {
	// Answer 返回模型对问题的完整回答。
	Answer(ctx context.Context, sessionID, question string) (string, error)
	// StreamAnswer 将回答以 {"chunk":...} 帧写入 writer，结束时写入完成通知。
	StreamAnswer(ctx context.Context, sessionID, question string, writer llm.MessageWriter, shouldStop func() bool) error
}

// ChatOptions 是问答流程的可调参数。
type ChatOptions struct {
	TopK       int
	Prompt     config.LLMPromptConfig
	Generation *llm.GenerationParams
}

type chatService struct {
	store         session.Store
	embedder      embedding.Client
	llmClient     llm.Client
	conversations ConversationService
	publisher     kafka.Publisher
	background    *Background
	opts          ChatOptions
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	store session.Store,
	embedder embedding.Client,
	llmClient llm.Client,
	conversations ConversationService,
	publisher kafka.Publisher,
	background *Background,
	opts ChatOptions,
) ChatService {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	return &chatService{
		store:         store,
		embedder:      embedder,
		llmClient:     llmClient,
		conversations: conversations,
		publisher:     publisher,
		background:    background,
		opts:          opts,
	}
}

func (s *chatService) Answer(ctx context.Context, sessionID, question string) (string, error) {
	messages, entry, err := s.prepare(ctx, sessionID, question)
	if err != nil {
		return "", err
	}
	answer, err := s.llmClient.Chat(ctx, messages, s.opts.Generation)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	s.finish(ctx, entry, question, answer)
	return answer, nil
}

func (s *chatService) StreamAnswer(ctx context.Context, sessionID, question string, writer llm.MessageWriter, shouldStop func() bool) error {
	messages, entry, err := s.prepare(ctx, sessionID, question)
	if err != nil {
		return err
	}

	// 拦截 writer 以捕获完整答案，并包装为 JSON 分块
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: writer, writer: answerBuilder, shouldStop: shouldStop}
	if err := s.llmClient.StreamChatMessages(ctx, messages, s.opts.Generation, interceptor); err != nil && !interceptor.stopped {
		return fmt.Errorf("failed to stream answer: %w", err)
	}

	sendCompletion(writer)
	if answerBuilder.Len() > 0 {
		s.finish(ctx, entry, question, answerBuilder.String())
	}
	return nil
}

// prepare 完成检索并构造发送给模型的消息。
func (s *chatService) prepare(ctx context.Context, sessionID, question string) ([]llm.Message, *session.Entry, error) {
	if strings.TrimSpace(question) == "" {
		return nil, nil, apperr.Input("No message provided")
	}
	entry, ok := s.store.Get(sessionID)
	if !ok {
		return nil, nil, apperr.ErrNoIndexAvailable
	}
	hits, err := retrieve(ctx, s.embedder, entry, question, s.opts.TopK)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	systemMsg := s.buildSystemMessage(buildContextText(entry.Document.FileName, hits))
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemMsg},
		{Role: llm.RoleUser, Content: question},
	}, entry, nil
}

// finish 保存对话历史并发布事件，失败只记录日志。
func (s *chatService) finish(ctx context.Context, entry *session.Entry, question, answer string) {
	// 即使原始请求被取消，也希望保存成功生成的答案
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.conversations.Record(saveCtx, entry.SessionID, question, answer); err != nil {
		log.Errorf("Failed to save conversation history: %v", err)
	}

	s.background.Go(ctx, "publish chat.answered", func(ctx context.Context) error {
		return s.publisher.Publish(ctx, kafka.Event{
			Type:      kafka.EventChatAnswered,
			SessionID: entry.SessionID,
			FileName:  entry.Document.FileName,
			Kind:      entry.Document.Kind,
			Model:     s.llmClient.Model(),
		})
	})
}

// buildContextText 按检索顺序拼接分块文本。
func buildContextText(fileName string, hits []vectorindex.Hit) string {
	if len(hits) == 0 {
		return ""
	}
	if fileName == "" {
		fileName = "unknown"
	}
	var contextBuilder strings.Builder
	for i, h := range hits {
		contextBuilder.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, fileName, h.Chunk.Text))
	}
	return contextBuilder.String()
}

func (s *chatService) buildSystemMessage(contextText string) string {
	p := s.opts.Prompt
	refStart := p.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := p.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}
	var sys strings.Builder
	if p.Rules != "" {
		sys.WriteString(p.Rules)
		sys.WriteString("\n\n")
	}
	sys.WriteString(refStart)
	sys.WriteString("\n")
	if contextText != "" {
		sys.WriteString(contextText)
	} else {
		noRes := p.NoResultText
		if noRes == "" {
			noRes = "（本轮无检索结果）"
		}
		sys.WriteString(noRes)
		sys.WriteString("\n")
	}
	sys.WriteString(refEnd)
	return sys.String()
}

// errStreamStopped 让模型的流式循环在客户端要求停止时提前退出。
var errStreamStopped = errors.New("stream stopped by client")

// wsWriterInterceptor 包装 websocket 写入，用于捕获写入的消息。
type wsWriterInterceptor struct {
	conn       llm.MessageWriter
	writer     *strings.Builder
	shouldStop func() bool
	stopped    bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.stopped || (w.shouldStop != nil && w.shouldStop()) {
		// 停止标志生效：中断上游流，已下发的部分照常保存
		w.stopped = true
		return errStreamStopped
	}
	w.writer.Write(data)
	// 将原始分块包装成 {"chunk":"..."}
	b, _ := json.Marshal(map[string]string{"chunk": string(data)})
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(w llm.MessageWriter) {
	now := time.Now()
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": now.UnixMilli(),
		"date":      now.Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(notif)
	_ = w.WriteMessage(websocket.TextMessage, b)
}
