package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"docchat-go/internal/apperr"
	"docchat-go/internal/model"
	"docchat-go/internal/pipeline"
	"docchat-go/internal/repository"
	"docchat-go/internal/session"
	"docchat-go/pkg/kafka"
	"docchat-go/pkg/log"
	"docchat-go/pkg/storage"
)

// DocumentService 接口定义了文档上传与会话文档查询的业务操作。
type DocumentService interface {
	// ExtractText 只抽取文本，不建立索引。
	ExtractText(ctx context.Context, sessionID string, doc model.Document) (string, error)
	// IngestDocument 为普通文档建立索引并设为会话的当前文档。
	IngestDocument(ctx context.Context, sessionID string, doc model.Document) (*model.DocumentInfo, error)
	// IngestResume 先做简历判定，通过后建立索引并设为会话的当前文档。
	IngestResume(ctx context.Context, sessionID string, doc model.Document) (*model.DocumentInfo, error)
	ActiveDocument(sessionID string) (*model.DocumentInfo, bool)
	ListDocuments(ctx context.Context, sessionID string) ([]model.DocumentRecordView, error)
}

type documentService struct {
	processor  *pipeline.Processor
	store      session.Store
	records    repository.DocumentRepository
	archiver   storage.Archiver
	publisher  kafka.Publisher
	background *Background
	now        func() time.Time
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	processor *pipeline.Processor,
	store session.Store,
	records repository.DocumentRepository,
	archiver storage.Archiver,
	publisher kafka.Publisher,
	background *Background,
) DocumentService {
	return &documentService{
		processor:  processor,
		store:      store,
		records:    records,
		archiver:   archiver,
		publisher:  publisher,
		background: background,
		now:        time.Now,
	}
}

func fileMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (s *documentService) ExtractText(ctx context.Context, sessionID string, doc model.Document) (string, error) {
	text, mediaType, err := s.processor.ExtractText(ctx, doc)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.ErrEmptyDocument
	}
	rec := s.newRecord(sessionID, doc, model.KindDocument, model.StatusExtracted)
	s.saveRecord(ctx, rec)
	s.afterUpload(ctx, rec, mediaType, doc.Data, text, kafka.EventDocumentExtracted, "")
	return text, nil
}

func (s *documentService) IngestDocument(ctx context.Context, sessionID string, doc model.Document) (*model.DocumentInfo, error) {
	return s.ingest(ctx, sessionID, doc, model.KindDocument)
}

func (s *documentService) IngestResume(ctx context.Context, sessionID string, doc model.Document) (*model.DocumentInfo, error) {
	return s.ingest(ctx, sessionID, doc, model.KindResume)
}

// ingest 只有在整个流程成功后才替换会话的当前索引，失败时保留旧索引。
func (s *documentService) ingest(ctx context.Context, sessionID string, doc model.Document, kind string) (*model.DocumentInfo, error) {
	res, err := s.processor.Process(ctx, doc, kind == model.KindResume)
	if err != nil {
		if errors.Is(err, apperr.ErrNotResume) && res != nil {
			rec := s.newRecord(sessionID, doc, kind, model.StatusRejected)
			rec.KeywordHits = res.Classification.Hits
			s.saveRecord(ctx, rec)
			s.afterUpload(ctx, rec, res.MediaType, nil, "", kafka.EventDocumentRejected, err.Error())
		}
		return nil, err
	}

	now := s.now()
	info := model.DocumentInfo{
		FileName:   doc.FileName,
		Kind:       kind,
		ChunkCount: res.Index.Len(),
		Model:      res.Index.Model(),
		IndexedAt:  model.LocalTime(now),
	}
	s.store.Put(ctx, &session.Entry{
		SessionID: sessionID,
		Index:     res.Index,
		Document:  info,
		IndexedAt: now,
	})
	log.Infow("[DocumentService] 会话文档已更新",
		"session", sessionID, "file", doc.FileName, "kind", kind, "chunks", info.ChunkCount)

	rec := s.newRecord(sessionID, doc, kind, model.StatusIndexed)
	rec.ChunkCount = info.ChunkCount
	rec.EmbeddingModel = info.Model
	if res.Classification != nil {
		rec.KeywordHits = res.Classification.Hits
	}
	s.saveRecord(ctx, rec)
	s.afterUpload(ctx, rec, res.MediaType, doc.Data, res.Text, kafka.EventDocumentIndexed, "")
	return &info, nil
}

func (s *documentService) newRecord(sessionID string, doc model.Document, kind, status string) *model.DocumentRecord {
	return &model.DocumentRecord{
		SessionID: sessionID,
		FileName:  doc.FileName,
		FileMD5:   fileMD5(doc.Data),
		FileSize:  int64(len(doc.Data)),
		Kind:      kind,
		Status:    status,
	}
}

// saveRecord 写入上传记录，失败不影响上传结果。
func (s *documentService) saveRecord(ctx context.Context, rec *model.DocumentRecord) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.records.Create(saveCtx, rec); err != nil {
		log.Errorw("[DocumentService] 保存上传记录失败", "session", rec.SessionID, "file", rec.FileName, "error", err)
	}
}

// afterUpload 在后台归档文件并发布事件。data 为空时不归档。
func (s *documentService) afterUpload(ctx context.Context, rec *model.DocumentRecord, mediaType string, data []byte, text, eventType, reason string) {
	if len(data) > 0 {
		obj := storage.ArchiveObject{
			SessionID: rec.SessionID,
			FileMD5:   rec.FileMD5,
			FileName:  rec.FileName,
			MediaType: mediaType,
			Data:      data,
			Text:      text,
		}
		s.background.Go(ctx, "archive "+rec.FileName, func(ctx context.Context) error {
			return s.archiver.Archive(ctx, obj)
		})
	}
	event := kafka.Event{
		Type:        eventType,
		SessionID:   rec.SessionID,
		FileName:    rec.FileName,
		FileMD5:     rec.FileMD5,
		Kind:        rec.Kind,
		ChunkCount:  rec.ChunkCount,
		KeywordHits: rec.KeywordHits,
		Model:       rec.EmbeddingModel,
		Reason:      reason,
	}
	s.background.Go(ctx, "publish "+eventType, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, event)
	})
}

func (s *documentService) ActiveDocument(sessionID string) (*model.DocumentInfo, bool) {
	entry, ok := s.store.Get(sessionID)
	if !ok {
		return nil, false
	}
	info := entry.Document
	return &info, true
}

func (s *documentService) ListDocuments(ctx context.Context, sessionID string) ([]model.DocumentRecordView, error) {
	records, err := s.records.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	views := make([]model.DocumentRecordView, 0, len(records))
	for _, r := range records {
		views = append(views, r.View())
	}
	return views, nil
}
