package vectorindex

import (
	"context"
	"fmt"
	"sort"

	"docchat-go/internal/apperr"
	"docchat-go/internal/model"
)

// MemoryBuilder 构建进程内的向量索引。
type MemoryBuilder struct{}

// NewMemoryBuilder 创建一个内存索引构建器。
func NewMemoryBuilder() *MemoryBuilder {
	return &MemoryBuilder{}
}

// Build 实现 Builder 接口。
func (MemoryBuilder) Build(_ context.Context, chunks []model.TextChunk, embeddings [][]float32, embeddingModel string) (Index, error) {
	paired, dim, err := pair(chunks, embeddings)
	if err != nil {
		return nil, err
	}
	norms := make([]float64, len(paired))
	for i, c := range paired {
		norms[i] = norm(c.Vector)
	}
	return &memoryIndex{chunks: paired, norms: norms, dim: dim, model: embeddingModel}, nil
}

// memoryIndex 使用线性扫描计算余弦相似度，适合单文档几百个分块的规模。
type memoryIndex struct {
	chunks []model.TextChunk
	norms  []float64
	dim    int
	model  string
}

func (m *memoryIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(m.chunks) > 0 && len(query) != m.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d: %w", len(query), m.dim, apperr.ErrDimensionMismatch)
	}
	k = clampK(k, len(m.chunks))
	if k == 0 {
		return []Hit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qn := norm(query)
	hits := make([]Hit, len(m.chunks))
	for i, c := range m.chunks {
		score := cosine(c.Vector, query, m.norms[i], qn)
		// 分块归索引所有，返回副本
		c.Vector = append([]float32(nil), c.Vector...)
		hits[i] = Hit{Chunk: c, Score: score}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	return hits[:k], nil
}

func (m *memoryIndex) Len() int       { return len(m.chunks) }
func (m *memoryIndex) Dimension() int { return m.dim }
func (m *memoryIndex) Model() string  { return m.model }

func (m *memoryIndex) Release(context.Context) error { return nil }
