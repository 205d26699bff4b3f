package model

import "time"

// 文档种类
const (
	KindDocument = "document"
	KindResume   = "resume"
)

// 文档处理状态
const (
	StatusIndexed   = "indexed"
	StatusExtracted = "extracted"
	StatusRejected  = "rejected"
)

// DocumentRecord 定义了 documents 表的 ORM 模型，每次上传尝试记录一行。
type DocumentRecord struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"type:varchar(64);not null;index" json:"sessionId"`
	FileName       string    `gorm:"type:varchar(255);not null" json:"fileName"`
	FileMD5        string    `gorm:"type:varchar(32);not null" json:"fileMd5"`
	FileSize       int64     `gorm:"not null" json:"fileSize"`
	Kind           string    `gorm:"type:varchar(16);not null" json:"kind"`
	Status         string    `gorm:"type:varchar(16);not null" json:"status"`
	ChunkCount     int       `gorm:"not null;default:0" json:"chunkCount"`
	KeywordHits    int       `gorm:"not null;default:0" json:"keywordHits"`
	EmbeddingModel string    `gorm:"type:varchar(100)" json:"embeddingModel"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentRecord) TableName() string {
	return "documents"
}

// DocumentRecordView 是 /documents 接口的返回结构。
type DocumentRecordView struct {
	ID          uint      `json:"id"`
	FileName    string    `json:"fileName"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	ChunkCount  int       `json:"chunkCount"`
	KeywordHits int       `json:"keywordHits"`
	CreatedAt   LocalTime `json:"createdAt"`
}

// View 转换为对外展示的结构。
func (r DocumentRecord) View() DocumentRecordView {
	return DocumentRecordView{
		ID:          r.ID,
		FileName:    r.FileName,
		Kind:        r.Kind,
		Status:      r.Status,
		ChunkCount:  r.ChunkCount,
		KeywordHits: r.KeywordHits,
		CreatedAt:   LocalTime(r.CreatedAt),
	}
}
