package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"docchat-go/internal/apperr"
	"docchat-go/internal/middleware"
	"docchat-go/internal/model"
	"docchat-go/internal/service"
	"docchat-go/pkg/log"
	"docchat-go/pkg/token"
)

// 上传模式
const (
	ModeExtract = "extract"
	ModeIndex   = "index"
)

// DocumentHandler 负责处理文档上传与会话文档查询的 API 请求。
type DocumentHandler struct {
	docService     service.DocumentService
	sessions       *token.SessionManager
	mode           string
	maxUploadBytes int64
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。mode 为 /upload-document 的默认模式。
func NewDocumentHandler(docService service.DocumentService, sessions *token.SessionManager, mode string, maxUploadMB int64) *DocumentHandler {
	if mode != ModeIndex {
		mode = ModeExtract
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &DocumentHandler{
		docService:     docService,
		sessions:       sessions,
		mode:           mode,
		maxUploadBytes: maxUploadMB << 20,
	}
}

// readUpload 读取 multipart 表单中的 file 字段。
func (h *DocumentHandler) readUpload(c *gin.Context) (model.Document, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.Document{}, apperr.Input("File exceeds the %d MB upload limit", h.maxUploadBytes>>20)
		}
		return model.Document{}, apperr.Input("No file uploaded")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return model.Document{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return model.Document{}, fmt.Errorf("read upload: %w", err)
	}
	return model.Document{
		Data:      data,
		MediaType: fileHeader.Header.Get("Content-Type"),
		FileName:  filepath.Base(fileHeader.Filename),
	}, nil
}

// UploadDocument 处理 POST /upload-document。
// extract 模式返回抽取出的文本附件；index 模式建立索引并返回确认消息。
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	const fallback = "Error processing document"
	doc, err := h.readUpload(c)
	if err != nil {
		respondError(c, err, fallback)
		return
	}
	sessionID, err := middleware.EnsureSession(c, h.sessions)
	if err != nil {
		respondError(c, err, fallback)
		return
	}

	mode := h.mode
	if m := c.PostForm("mode"); m == ModeExtract || m == ModeIndex {
		mode = m
	}
	log.Infof("[DocumentHandler] 收到文档上传, session: %s, file: %s, size: %d, mode: %s", sessionID, doc.FileName, len(doc.Data), mode)

	if mode == ModeExtract {
		text, err := h.docService.ExtractText(c.Request.Context(), sessionID, doc)
		if err != nil {
			respondError(c, err, fallback)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, textFileName(doc.FileName)))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
		return
	}

	info, err := h.docService.IngestDocument(c.Request.Context(), sessionID, doc)
	if err != nil {
		respondError(c, err, fallback)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Document processed successfully. You can now ask questions about it.",
		"document": info,
	})
}

// UploadResume 处理 POST /upload-resume。
func (h *DocumentHandler) UploadResume(c *gin.Context) {
	const fallback = "Error processing resume"
	doc, err := h.readUpload(c)
	if err != nil {
		respondError(c, err, fallback)
		return
	}
	sessionID, err := middleware.EnsureSession(c, h.sessions)
	if err != nil {
		respondError(c, err, fallback)
		return
	}
	log.Infof("[DocumentHandler] 收到简历上传, session: %s, file: %s, size: %d", sessionID, doc.FileName, len(doc.Data))

	info, err := h.docService.IngestResume(c.Request.Context(), sessionID, doc)
	if err != nil {
		respondError(c, err, fallback)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Resume processed successfully. You can now ask questions about it.",
		"document": info,
	})
}

// ActiveDocument 处理 GET /session，返回会话当前生效的文档，没有时 data 为 null。
func (h *DocumentHandler) ActiveDocument(c *gin.Context) {
	var data interface{}
	if sessionID, ok := middleware.SessionID(c); ok {
		if info, ok := h.docService.ActiveDocument(sessionID); ok {
			data = info
		}
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

// ListDocuments 处理 GET /documents，返回会话的上传记录。
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	records := []model.DocumentRecordView{}
	if sessionID, ok := middleware.SessionID(c); ok {
		var err error
		records, err = h.docService.ListDocuments(c.Request.Context(), sessionID)
		if err != nil {
			respondError(c, err, "Failed to retrieve documents")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": records})
}

// textFileName 把 cv.pdf 转换为 cv.txt。
func textFileName(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	base = strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(base)
	if base == "" {
		base = "document"
	}
	return base + ".txt"
}
