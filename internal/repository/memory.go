package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"docchat-go/internal/model"
)

// 未配置 Redis / MySQL 时使用的进程内实现。

type memoryConversationRepository struct {
	mu      sync.Mutex
	limit   int
	history map[string][]model.ChatMessage
}

// NewMemoryConversationRepository 创建进程内的 ConversationRepository。
func NewMemoryConversationRepository(limit int) ConversationRepository {
	if limit <= 0 {
		limit = 20
	}
	return &memoryConversationRepository{limit: limit, history: make(map[string][]model.ChatMessage)}
}

func (r *memoryConversationRepository) Append(_ context.Context, sessionID string, messages ...model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := append(r.history[sessionID], messages...)
	if len(h) > r.limit {
		h = append([]model.ChatMessage(nil), h[len(h)-r.limit:]...)
	}
	r.history[sessionID] = h
	return nil
}

func (r *memoryConversationRepository) History(_ context.Context, sessionID string) ([]model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChatMessage{}, r.history[sessionID]...), nil
}

type memoryDocumentRepository struct {
	mu      sync.Mutex
	nextID  uint
	records []model.DocumentRecord
}

// NewMemoryDocumentRepository 创建进程内的 DocumentRepository。
func NewMemoryDocumentRepository() DocumentRepository {
	return &memoryDocumentRepository{}
}

func (r *memoryDocumentRepository) Create(_ context.Context, record *model.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	record.ID = r.nextID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	r.records = append(r.records, *record)
	return nil
}

func (r *memoryDocumentRepository) FindBySession(_ context.Context, sessionID string) ([]model.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.DocumentRecord{}
	for _, rec := range r.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
