// Package vectorindex 定义了向量索引的构建与检索接口，并提供内存与 Elasticsearch 两种实现。
package vectorindex

import (
	"context"
	"fmt"
	"math"

	"docchat-go/internal/apperr"
	"docchat-go/internal/model"
)

// Hit 是一次检索命中的分块及其余弦相似度。
type Hit struct {
	Chunk model.TextChunk
	Score float64
}

// Index 是构建完成后只读的向量索引。
type Index interface {
	// Search 返回与 query 余弦相似度最高的 k 个分块，按相似度降序，相同分数按插入顺序。
	// k 会被限制在 [0, Len()] 之间。
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Len() int
	Dimension() int
	// Model 返回构建该索引时使用的 embedding 模型名。
	Model() string
	// Release 释放索引占用的外部资源，索引被替换或会话过期时调用。
	Release(ctx context.Context) error
}

// Builder 将分块与对应的向量配对，构建一个新的索引。
type Builder interface {
	Build(ctx context.Context, chunks []model.TextChunk, embeddings [][]float32, embeddingModel string) (Index, error)
}

// pair 校验输入并返回带向量的分块副本以及向量维度。
func pair(chunks []model.TextChunk, embeddings [][]float32) ([]model.TextChunk, int, error) {
	if len(chunks) != len(embeddings) {
		return nil, 0, fmt.Errorf("%d chunks, %d embeddings: %w", len(chunks), len(embeddings), apperr.ErrLengthMismatch)
	}
	dim := 0
	out := make([]model.TextChunk, len(chunks))
	for i, c := range chunks {
		vec := embeddings[i]
		if len(vec) == 0 {
			return nil, 0, fmt.Errorf("chunk %d has an empty vector: %w", c.ID, apperr.ErrDimensionMismatch)
		}
		if i == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return nil, 0, fmt.Errorf("chunk %d has dimension %d, expected %d: %w", c.ID, len(vec), dim, apperr.ErrDimensionMismatch)
		}
		c.Vector = append([]float32(nil), vec...)
		out[i] = c
	}
	return out, dim, nil
}

func clampK(k, n int) int {
	if k < 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine 计算两个等长向量的余弦相似度，na、nb 为预先算好的范数，任一为 0 时返回 0。
func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
