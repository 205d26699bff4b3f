package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docchat-go/internal/apperr"
	"docchat-go/internal/middleware"
	"docchat-go/internal/service"
	"docchat-go/pkg/log"
)

// SearchHandler 结构体定义了检索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 处理 GET /search?query=&topK=，只做检索不调用模型。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No query provided"})
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("topK", "0"))
	if err != nil || topK < 0 {
		topK = 0
	}
	log.Infof("[SearchHandler] 收到检索请求, query: %s, topK: %d", query, topK)

	sessionID, ok := middleware.SessionID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": noDocumentMessage})
		return
	}
	results, err := h.searchService.Search(c.Request.Context(), sessionID, query, topK)
	if err != nil {
		if errors.Is(err, apperr.ErrNoIndexAvailable) {
			c.JSON(http.StatusBadRequest, gin.H{"error": noDocumentMessage})
			return
		}
		respondError(c, err, "Error processing search")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    results,
	})
}
