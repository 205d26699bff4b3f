// Package pipeline 定义了文件处理的核心流程：抽取、分类、切块、向量化与建索引。
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"docchat-go/internal/apperr"
	"docchat-go/internal/classifier"
	"docchat-go/internal/model"
	"docchat-go/internal/vectorindex"
	"docchat-go/pkg/embedding"
	"docchat-go/pkg/extract"
	"docchat-go/pkg/log"
)

// Processor 封装了文件处理的所有依赖和逻辑。它不持有任何会话状态。
type Processor struct {
	extractor    extract.Extractor
	embedder     embedding.Client
	builder      vectorindex.Builder
	classifier   *classifier.Classifier
	chunkSize    int
	chunkOverlap int
}

// NewProcessor 创建一个新的 Processor 实例。chunk 参数非法时返回配置错误。
func NewProcessor(
	extractor extract.Extractor,
	embedder embedding.Client,
	builder vectorindex.Builder,
	cls *classifier.Classifier,
	chunkSize, chunkOverlap int,
) (*Processor, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, apperr.Wrap(apperr.KindConfig,
			fmt.Sprintf("chunk_size=%d chunk_overlap=%d", chunkSize, chunkOverlap), apperr.ErrInvalidChunkParams)
	}
	if cls == nil {
		cls = classifier.New(nil, 0)
	}
	return &Processor{
		extractor:    extractor,
		embedder:     embedder,
		builder:      builder,
		classifier:   cls,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Result 是一次成功处理的产物，调用方决定是否提交到会话存储。
type Result struct {
	Text           string
	MediaType      string
	Classification *model.ClassificationResult
	Chunks         []model.TextChunk
	Index          vectorindex.Index
}

// ExtractText 识别媒体类型并抽取文本，返回文本与识别出的媒体类型。
func (p *Processor) ExtractText(ctx context.Context, doc model.Document) (string, string, error) {
	mediaType := extract.DetectMediaType(doc.Data, doc.MediaType, doc.FileName)
	if !extract.IsSupported(mediaType) {
		return "", mediaType, fmt.Errorf("file %s is %s: %w", doc.FileName, mediaType, apperr.ErrUnsupportedFormat)
	}
	text, err := p.extractor.Extract(ctx, doc.Data, mediaType)
	if err != nil {
		return "", mediaType, fmt.Errorf("extract %s: %w", doc.FileName, err)
	}
	log.Infof("[Processor] 文本抽取成功, FileName: %s, 内容长度: %d 字符", doc.FileName, utf8.RuneCountInString(text))
	return text, mediaType, nil
}

// Process 执行完整的建索引流程。requireResume 为 true 时先做简历判定。
//
// 简历判定失败时返回 ErrNotResume，同时返回带有判定结果的 Result，便于调用方记录命中数。
// 其余任一步骤失败都不会产生索引。
func (p *Processor) Process(ctx context.Context, doc model.Document, requireResume bool) (*Result, error) {
	log.Infof("[Processor] 开始处理文件, FileName: %s, Size: %d", doc.FileName, len(doc.Data))

	// 1. 抽取
	text, mediaType, err := p.ExtractText(ctx, doc)
	if err != nil {
		return nil, err
	}
	res := &Result{Text: text, MediaType: mediaType}

	// 2. 简历判定
	if requireResume {
		verdict := p.classifier.IsResume(text)
		res.Classification = &verdict
		log.Infof("[Processor] 简历判定, FileName: %s, hits: %d, matched: %v", doc.FileName, verdict.Hits, verdict.Matched)
		if !verdict.IsResume {
			return res, fmt.Errorf("%d keyword hits, need %d: %w", verdict.Hits, p.classifier.Threshold(), apperr.ErrNotResume)
		}
	}

	if strings.TrimSpace(text) == "" {
		log.Warnf("[Processor] 抽取的文本内容为空, 处理中止, FileName: %s", doc.FileName)
		return nil, fmt.Errorf("file %s: %w", doc.FileName, apperr.ErrEmptyDocument)
	}

	// 3. 切块
	chunks, err := Chunk(text, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return nil, err
	}
	log.Infof("[Processor] 文本分块完成, chunkSize: %d, chunkOverlap: %d, 共 %d 个分块", p.chunkSize, p.chunkOverlap, len(chunks))

	// 4. 向量化
	embeddings := make([][]float32, 0, len(chunks))
	for i, c := range chunks {
		vec, err := p.embedder.CreateEmbedding(ctx, c.Text)
		if err != nil {
			log.Errorf("[Processor] 分块 %d/%d 向量化失败, Error: %v", i+1, len(chunks), err)
			return nil, fmt.Errorf("embed chunk %d: %w", c.ID, err)
		}
		embeddings = append(embeddings, vec)
	}

	// 5. 建索引
	idx, err := p.builder.Build(ctx, chunks, embeddings, p.embedder.Model())
	if err != nil {
		log.Errorf("[Processor] 建立向量索引失败, FileName: %s, Error: %v", doc.FileName, err)
		return nil, fmt.Errorf("build index: %w", err)
	}
	res.Chunks = chunks
	res.Index = idx
	log.Infof("[Processor] 文件处理成功完成, FileName: %s, 分块数: %d, 维度: %d", doc.FileName, idx.Len(), idx.Dimension())
	return res, nil
}
