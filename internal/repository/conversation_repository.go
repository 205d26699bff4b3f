// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"docchat-go/internal/model"
)

// ConversationRepository 定义了会话消息历史的操作接口。历史只追加，超出上限时丢弃最早的消息。
type ConversationRepository interface {
	Append(ctx context.Context, sessionID string, messages ...model.ChatMessage) error
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

const conversationTTL = 7 * 24 * time.Hour

type redisConversationRepository struct {
	redisClient *redis.Client
	limit       int
}

// NewConversationRepository 创建基于 Redis 列表的 ConversationRepository，limit 为保留的最近消息条数。
func NewConversationRepository(redisClient *redis.Client, limit int) ConversationRepository {
	if limit <= 0 {
		limit = 20
	}
	return &redisConversationRepository{redisClient: redisClient, limit: limit}
}

func conversationKey(sessionID string) string {
	return fmt.Sprintf("conversation:%s", sessionID)
}

// Append 在一个事务中追加消息、裁剪长度并刷新过期时间。
func (r *redisConversationRepository) Append(ctx context.Context, sessionID string, messages ...model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal chat message: %w", err)
		}
		values = append(values, b)
	}
	key := conversationKey(sessionID)
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-r.limit), -1)
		pipe.Expire(ctx, key, conversationTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append conversation history: %w", err)
	}
	return nil
}

// History 从 Redis 获取会话的消息历史，按时间顺序。
func (r *redisConversationRepository) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	raw, err := r.redisClient.LRange(ctx, conversationKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}
