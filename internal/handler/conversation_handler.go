package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat-go/internal/middleware"
	"docchat-go/internal/model"
	"docchat-go/internal/service"
)

// ConversationHandler 处理与对话历史相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// History 处理 GET /chat/history，没有会话时返回空列表。
func (h *ConversationHandler) History(c *gin.Context) {
	history := []model.ChatMessage{}
	if sessionID, ok := middleware.SessionID(c); ok {
		var err error
		history, err = h.service.History(c.Request.Context(), sessionID)
		if err != nil {
			respondError(c, err, "Failed to retrieve conversation history")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    history,
	})
}
