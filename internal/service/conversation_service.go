package service

import (
	"context"
	"time"

	"docchat-go/internal/model"
	"docchat-go/internal/repository"
)

// ConversationService 定义了对话历史的业务逻辑。
type ConversationService interface {
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	// Record 追加一轮问答。
	Record(ctx context.Context, sessionID, question, answer string) error
}

type conversationService struct {
	repo repository.ConversationRepository
	now  func() time.Time
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo, now: time.Now}
}

func (s *conversationService) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return s.repo.History(ctx, sessionID)
}

func (s *conversationService) Record(ctx context.Context, sessionID, question, answer string) error {
	now := s.now()
	return s.repo.Append(ctx, sessionID,
		model.ChatMessage{Role: model.RoleUser, Content: question, Timestamp: now},
		model.ChatMessage{Role: model.RoleAssistant, Content: answer, Timestamp: now},
	)
}
