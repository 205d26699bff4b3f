package model

// Document 是一次上传的原始文件，只在请求处理期间存在。
type Document struct {
	Data      []byte
	MediaType string
	FileName  string
}

// TextChunk 是抽取文本中的一段窗口。
// SourceOffset 为该段在原文中的起始位置（按 rune 计）。Vector 在建索引后填充。
type TextChunk struct {
	ID           int       `json:"id"`
	Text         string    `json:"text"`
	SourceOffset int       `json:"sourceOffset"`
	Vector       []float32 `json:"-"`
}

// ClassificationResult 是简历判定的结果。
type ClassificationResult struct {
	IsResume bool     `json:"isResume"`
	Hits     int      `json:"hits"`
	Matched  []string `json:"matched"`
}

// SearchHit 是返回给前端的检索结果。
type SearchHit struct {
	ChunkID      int     `json:"chunkId"`
	SourceOffset int     `json:"sourceOffset"`
	TextContent  string  `json:"textContent"`
	Score        float64 `json:"score"`
}

// DocumentInfo 描述会话当前生效的文档。
type DocumentInfo struct {
	FileName   string    `json:"fileName"`
	Kind       string    `json:"kind"`
	ChunkCount int       `json:"chunkCount"`
	Model      string    `json:"embeddingModel"`
	IndexedAt  LocalTime `json:"indexedAt"`
}
