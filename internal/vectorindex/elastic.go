package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"docchat-go/internal/apperr"
	"docchat-go/internal/model"
	"docchat-go/pkg/log"
)

// ElasticBuilder 将索引数据写入一个共享的 Elasticsearch 索引，
// 每次 Build 生成一个 index_id，检索与释放都按 index_id 过滤。
type ElasticBuilder struct {
	client    *elasticsearch.Client
	indexName string
	dims      int
}

// NewElasticBuilder 创建 Elasticsearch 索引构建器。dims 必须与 mapping 中 dense_vector 的维度一致。
func NewElasticBuilder(client *elasticsearch.Client, indexName string, dims int) *ElasticBuilder {
	return &ElasticBuilder{client: client, indexName: indexName, dims: dims}
}

// Build 实现 Builder 接口，使用 bulk 写入并立即刷新，使数据对后续检索可见。
func (b *ElasticBuilder) Build(ctx context.Context, chunks []model.TextChunk, embeddings [][]float32, embeddingModel string) (Index, error) {
	paired, dim, err := pair(chunks, embeddings)
	if err != nil {
		return nil, err
	}
	if len(paired) > 0 && b.dims > 0 && dim != b.dims {
		return nil, fmt.Errorf("vectors have dimension %d, mapping expects %d: %w", dim, b.dims, apperr.ErrDimensionMismatch)
	}

	idx := &elasticIndex{
		client:    b.client,
		indexName: b.indexName,
		id:        uuid.NewString(),
		count:     len(paired),
		dim:       dim,
		model:     embeddingModel,
	}
	if len(paired) == 0 {
		return idx, nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, c := range paired {
		meta := map[string]any{"index": map[string]any{"_index": b.indexName, "_id": fmt.Sprintf("%s_%d", idx.id, c.ID)}}
		if err := enc.Encode(meta); err != nil {
			return nil, err
		}
		doc := model.EsChunk{
			IndexID:      idx.id,
			ChunkID:      c.ID,
			SourceOffset: c.SourceOffset,
			TextContent:  c.Text,
			Vector:       c.Vector,
			ModelVersion: embeddingModel,
		}
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
	}

	req := esapi.BulkRequest{Body: &body, Refresh: "true"}
	res, err := req.Do(ctx, b.client)
	if err != nil {
		return nil, fmt.Errorf("bulk index chunks: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[VectorIndex] 批量写入 Elasticsearch 出错: %s", res.String())
		return nil, fmt.Errorf("bulk index chunks: status %d", res.StatusCode)
	}

	var bulk struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}
	if bulk.Errors {
		// 部分写入失败时清理已写入的数据，保证要么全部可见要么全部不可见
		if rerr := idx.Release(context.WithoutCancel(ctx)); rerr != nil {
			log.Warnf("[VectorIndex] 清理部分写入的索引数据失败, index_id: %s, error: %v", idx.id, rerr)
		}
		return nil, fmt.Errorf("bulk index chunks: some items failed")
	}
	log.Infof("[VectorIndex] 已写入 %d 个分块到 Elasticsearch, index_id: %s", idx.count, idx.id)
	return idx, nil
}

type elasticIndex struct {
	client    *elasticsearch.Client
	indexName string
	id        string
	count     int
	dim       int
	model     string
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				ChunkID      int    `json:"chunk_id"`
				SourceOffset int    `json:"source_offset"`
				TextContent  string `json:"text_content"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *elasticIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if e.count > 0 && len(query) != e.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d: %w", len(query), e.dim, apperr.ErrDimensionMismatch)
	}
	k = clampK(k, e.count)
	if k == 0 {
		return []Hit{}, nil
	}

	numCandidates := k * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	if numCandidates > 10000 {
		numCandidates = 10000
	}
	body := map[string]any{
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   query,
			"k":              k,
			"num_candidates": numCandidates,
			"filter":         map[string]any{"term": map[string]any{"index_id": e.id}},
		},
		"size":    k,
		"_source": []string{"chunk_id", "source_offset", "text_content"},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		b, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorIndex] Elasticsearch 检索出错, status: %d, body: %s", res.StatusCode, string(b))
		return nil, fmt.Errorf("knn search: status %d", res.StatusCode)
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return toHits(parsed), nil
}

// toHits 将 ES 的 cosine 得分 (1+cos)/2 还原为余弦相似度，并按 (得分降序, 分块 ID 升序) 排序。
func toHits(parsed esSearchResponse) []Hit {
	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{
			Chunk: model.TextChunk{
				ID:           h.Source.ChunkID,
				Text:         h.Source.TextContent,
				SourceOffset: h.Source.SourceOffset,
			},
			Score: 2*h.Score - 1,
		})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Chunk.ID < hits[b].Chunk.ID
	})
	return hits
}

func (e *elasticIndex) Len() int       { return e.count }
func (e *elasticIndex) Dimension() int { return e.dim }
func (e *elasticIndex) Model() string  { return e.model }

// Release 删除该索引在 Elasticsearch 中的全部分块。
func (e *elasticIndex) Release(ctx context.Context) error {
	if e.count == 0 {
		return nil
	}
	q := fmt.Sprintf(`{"query":{"term":{"index_id":%q}}}`, e.id)
	refresh := true
	req := esapi.DeleteByQueryRequest{
		Index:     []string{e.indexName},
		Body:      strings.NewReader(q),
		Refresh:   &refresh,
		Conflicts: "proceed",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("delete index %s: %w", e.id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete index %s: status %d", e.id, res.StatusCode)
	}
	log.Infof("[VectorIndex] 已释放 Elasticsearch 中的索引数据, index_id: %s", e.id)
	return nil
}
