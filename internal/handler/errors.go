// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat-go/internal/apperr"
	"docchat-go/pkg/log"
)

// respondError 把错误映射为 HTTP 响应：输入类与校验类错误返回 400 和可展示的文案，
// 其余返回 500 和 fallback，完整错误链只写入服务端日志。
func respondError(c *gin.Context, err error, fallback string) {
	if apperr.IsUserError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.PublicMessage(err, fallback)})
		return
	}
	log.Errorw(fallback,
		"requestID", c.GetString("requestID"),
		"path", c.Request.URL.Path,
		"kind", apperr.KindOf(err).String(),
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}
