// Package kafka 负责把文档处理与问答事件发布到 Kafka。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"docchat-go/internal/config"
	"docchat-go/pkg/log"
)

// 事件类型
const (
	EventDocumentIndexed   = "document.indexed"
	EventDocumentExtracted = "document.extracted"
	EventDocumentRejected  = "document.rejected"
	EventChatAnswered      = "chat.answered"
)

// Event 是发布到 Kafka 的消息体。
type Event struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	FileName    string    `json:"file_name,omitempty"`
	FileMD5     string    `json:"file_md5,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	ChunkCount  int       `json:"chunk_count,omitempty"`
	KeywordHits int       `json:"keyword_hits,omitempty"`
	Model       string    `json:"model,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher 发布事件。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 是基于 kafka.Writer 的 Publisher，以会话 ID 作为消息 key。
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer 初始化 Kafka 生产者。Brokers 以逗号分隔。
func NewProducer(cfg config.KafkaConfig) *Producer {
	var brokers []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	log.Infof("Kafka 生产者初始化成功, brokers: %v, topic: %s", brokers, cfg.Topic)
	return &Producer{writer: w, topic: cfg.Topic}
}

// Publish 发送一个事件。OccurredAt 为空时填充当前时间。
func (p *Producer) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Nop 丢弃所有事件，用于未配置 Kafka 的部署。
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
