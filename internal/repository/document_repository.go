package repository

import (
	"context"

	"gorm.io/gorm"

	"docchat-go/internal/model"
)

// DocumentRepository 记录每一次上传尝试。
type DocumentRepository interface {
	Create(ctx context.Context, record *model.DocumentRecord) error
	FindBySession(ctx context.Context, sessionID string) ([]model.DocumentRecord, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个 GORM 实现的 DocumentRepository。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, record *model.DocumentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindBySession 返回会话的上传记录，最新的在前。
func (r *documentRepository) FindBySession(ctx context.Context, sessionID string) ([]model.DocumentRecord, error) {
	var records []model.DocumentRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	return records, err
}
