package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat-go/internal/middleware"
	"docchat-go/internal/service"
	"docchat-go/pkg/token"
)

// RouterOptions 汇总注册路由所需的依赖。
type RouterOptions struct {
	DocumentService     service.DocumentService
	ChatService         service.ChatService
	SearchService       service.SearchService
	ConversationService service.ConversationService
	Sessions            *token.SessionManager

	DocumentMode   string
	MaxUploadMB    int64
	AllowedOrigins []string
}

// NewRouter 创建 Gin 引擎并注册全部路由。
func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(opts.AllowedOrigins), middleware.Session(opts.Sessions))
	// multipart 表单超出内存部分写入临时文件
	r.MaxMultipartMemory = 8 << 20

	documentHandler := NewDocumentHandler(opts.DocumentService, opts.Sessions, opts.DocumentMode, opts.MaxUploadMB)
	chatHandler := NewChatHandler(opts.ChatService, opts.Sessions, opts.AllowedOrigins)
	searchHandler := NewSearchHandler(opts.SearchService)
	conversationHandler := NewConversationHandler(opts.ConversationService)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/upload-document", documentHandler.UploadDocument)
	r.POST("/upload-resume", documentHandler.UploadResume)
	r.GET("/session", documentHandler.ActiveDocument)
	r.GET("/documents", documentHandler.ListDocuments)

	r.POST("/chat", chatHandler.Chat)
	r.POST("/resume-chat", chatHandler.ResumeChat)
	r.GET("/chat/stream", chatHandler.Stream)
	r.GET("/chat/history", conversationHandler.History)

	r.GET("/search", searchHandler.Search)
	return r
}
