// Package extract 负责把上传的二进制文档转换为纯文本。
package extract

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"docchat-go/internal/apperr"
	"docchat-go/pkg/log"
)

// MediaTypePDF 是目前唯一支持的文档类型。
const MediaTypePDF = "application/pdf"

// Extractor 将文档字节转换为纯文本。
type Extractor interface {
	Extract(ctx context.Context, data []byte, mediaType string) (string, error)
}

// DetectMediaType 优先根据文件内容判断类型；内容无法判断时依次使用声明的 Content-Type 与文件扩展名。
func DetectMediaType(data []byte, declared, fileName string) string {
	sniffed := mimetype.Detect(data)
	if sniffed.Is(MediaTypePDF) {
		return MediaTypePDF
	}
	generic := len(data) == 0 || sniffed.Is("application/octet-stream") || sniffed.Is("text/plain")
	if !generic {
		return sniffed.String()
	}
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	if strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return MediaTypePDF
	}
	return sniffed.String()
}

// IsSupported 判断媒体类型是否可以被抽取。
func IsSupported(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	return err == nil && mt == MediaTypePDF
}

// PDFExtractor 使用 ledongthuc/pdf 在进程内解析 PDF。
type PDFExtractor struct{}

// NewPDFExtractor 创建一个 PDF 文本抽取器。
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract 按页序抽取全部文本，页与页之间以单个换行连接。
// 没有页面或没有文字的 PDF 返回空字符串。无法解析的字节返回 ErrCorruptFile。
func (e *PDFExtractor) Extract(ctx context.Context, data []byte, mediaType string) (text string, err error) {
	if !IsSupported(mediaType) {
		return "", fmt.Errorf("media type %q: %w", mediaType, apperr.ErrUnsupportedFormat)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty input: %w", apperr.ErrCorruptFile)
	}

	// 解析器在遇到畸形数据时可能 panic
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("[Extractor] 解析 PDF 时发生 panic: %v", r)
			text, err = "", fmt.Errorf("pdf parser panic: %v: %w", r, apperr.ErrCorruptFile)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %v: %w", err, apperr.ErrCorruptFile)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %v: %w", i, err, apperr.ErrCorruptFile)
		}
		pages = append(pages, content)
	}
	log.Debugf("[Extractor] PDF 抽取完成, 页数: %d", numPages)
	return strings.Join(pages, "\n"), nil
}
