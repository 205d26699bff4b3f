package model

// EsChunk 定义了存储在 Elasticsearch 中的分块文档结构。
// 同一个 ES 索引里存放多个向量索引的数据，用 IndexID 区分。
type EsChunk struct {
	IndexID      string    `json:"index_id"`
	ChunkID      int       `json:"chunk_id"`
	SourceOffset int       `json:"source_offset"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}
