// Package storage 提供了与对象存储服务（如 MinIO）交互的功能，用于归档上传的原始文件与抽取文本。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docchat-go/internal/config"
	"docchat-go/pkg/log"
)

// Archiver 保存一次上传的原始文件和抽取出的文本。
type Archiver interface {
	Archive(ctx context.Context, obj ArchiveObject) error
}

// ArchiveObject 描述一次需要归档的上传。
type ArchiveObject struct {
	SessionID string
	FileMD5   string
	FileName  string
	MediaType string
	Data      []byte
	Text      string
}

// ObjectNames 返回原始文件与文本在存储桶中的对象名。
func (o ArchiveObject) ObjectNames() (original, text string) {
	return fmt.Sprintf("uploads/%s/%s", o.FileMD5, path.Base(o.FileName)),
		fmt.Sprintf("text/%s.txt", o.FileMD5)
}

// MinioArchiver 把上传归档到 MinIO。
type MinioArchiver struct {
	client *minio.Client
	bucket string
}

// NewMinioClient 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewMinioClient(ctx context.Context, cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}
	log.Infof("MinIO 客户端初始化成功, bucket: %s", cfg.BucketName)
	return client, nil
}

// NewMinioArchiver 创建 MinioArchiver。
func NewMinioArchiver(client *minio.Client, bucket string) *MinioArchiver {
	return &MinioArchiver{client: client, bucket: bucket}
}

// Archive 上传原始文件；Text 非空时同时上传抽取文本。
func (a *MinioArchiver) Archive(ctx context.Context, obj ArchiveObject) error {
	originalName, textName := obj.ObjectNames()
	meta := map[string]string{"session-id": obj.SessionID, "file-name": obj.FileName}

	_, err := a.client.PutObject(ctx, a.bucket, originalName, bytes.NewReader(obj.Data), int64(len(obj.Data)),
		minio.PutObjectOptions{ContentType: obj.MediaType, UserMetadata: meta})
	if err != nil {
		return fmt.Errorf("上传原始文件 %s 失败: %w", originalName, err)
	}
	if obj.Text == "" {
		return nil
	}
	_, err = a.client.PutObject(ctx, a.bucket, textName, bytes.NewReader([]byte(obj.Text)), int64(len(obj.Text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8", UserMetadata: meta})
	if err != nil {
		return fmt.Errorf("上传文本 %s 失败: %w", textName, err)
	}
	return nil
}

// Nop 不做任何归档。
type Nop struct{}

func (Nop) Archive(context.Context, ArchiveObject) error { return nil }
