// Package embeddingtest 提供确定性的假向量化客户端，供各层测试使用。
package embeddingtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// Fake 把文本按词哈希到 Dim 个桶中，词重叠越多的文本余弦相似度越高。
type Fake struct {
	Dim       int
	ModelName string
	// Err 非空时每次调用都返回该错误。
	Err error
	// FailAfter > 0 时，第 FailAfter 次之后的调用返回 Err。
	FailAfter int

	mu    sync.Mutex
	calls int
}

// New 创建一个维度为 dim 的 Fake。
func New(dim int) *Fake {
	return &Fake{Dim: dim, ModelName: "fake-embedding"}
}

func (f *Fake) Model() string { return f.ModelName }

// Calls 返回已发生的调用次数。
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.Err != nil && (f.FailAfter == 0 || n > f.FailAfter) {
		return nil, f.Err
	}
	return Vector(text, f.Dim), nil
}

// Vector 返回 text 的词袋哈希向量。
func Vector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dim)]++
	}
	return vec
}
