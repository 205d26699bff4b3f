// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"docchat-go/internal/apperr"
	"docchat-go/internal/model"
	"docchat-go/internal/session"
	"docchat-go/internal/vectorindex"
	"docchat-go/pkg/embedding"
	"docchat-go/pkg/log"
)

// SearchService 接口定义了对会话当前文档的检索操作。
type SearchService interface {
	Search(ctx context.Context, sessionID, query string, topK int) ([]model.SearchHit, error)
}

type searchService struct {
	embedder embedding.Client
	store    session.Store
	topK     int
}

// NewSearchService 创建一个新的 SearchService 实例。topK 为调用方未指定时的默认值。
func NewSearchService(embedder embedding.Client, store session.Store, topK int) SearchService {
	return &searchService{embedder: embedder, store: store, topK: topK}
}

// Search 向量化查询并在会话的索引中检索。
func (s *searchService) Search(ctx context.Context, sessionID, query string, topK int) ([]model.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Input("No query provided")
	}
	if topK <= 0 {
		topK = s.topK
	}
	entry, ok := s.store.Get(sessionID)
	if !ok {
		return nil, apperr.ErrNoIndexAvailable
	}
	hits, err := retrieve(ctx, s.embedder, entry, query, topK)
	if err != nil {
		return nil, err
	}
	out := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.SearchHit{
			ChunkID:      h.Chunk.ID,
			SourceOffset: h.Chunk.SourceOffset,
			TextContent:  h.Chunk.Text,
			Score:        h.Score,
		})
	}
	return out, nil
}

// retrieve 用与建索引时相同的模型向量化查询，并返回 top-k 结果。
func retrieve(ctx context.Context, embedder embedding.Client, entry *session.Entry, query string, k int) ([]vectorindex.Hit, error) {
	if embedder.Model() != entry.Index.Model() {
		return nil, fmt.Errorf("index built with %q, embedder uses %q: %w",
			entry.Index.Model(), embedder.Model(), apperr.ErrModelMismatch)
	}
	queryVector, err := embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	hits, err := entry.Index.Search(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	log.Debugf("[SearchService] session: %s, k: %d, hits: %d", entry.SessionID, k, len(hits))
	return hits, nil
}
