package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat-go/pkg/log"
	"docchat-go/pkg/token"
)

// 会话令牌的传递方式
const (
	SessionHeader = "X-Session-Token"
	SessionCookie = "session_token"

	sessionIDKey = "sessionID"
)

// Session 从请求头或 cookie 中解析会话令牌，有效时把会话 ID 存入上下文。
// 缺少或无效的令牌不会中止请求，由具体处理函数决定是否需要会话。
func Session(sm *token.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader(SessionHeader)
		if tokenString == "" {
			tokenString, _ = c.Cookie(SessionCookie)
		}
		if tokenString != "" {
			sid, err := sm.VerifyToken(tokenString)
			if err != nil {
				log.Debugf("忽略无效的会话令牌: %v", err)
			} else {
				c.Set(sessionIDKey, sid)
			}
		}
		c.Next()
	}
}

// SessionID 返回当前请求的会话 ID。
func SessionID(c *gin.Context) (string, bool) {
	sid := c.GetString(sessionIDKey)
	return sid, sid != ""
}

// EnsureSession 返回当前会话 ID；请求没有有效会话时创建新会话，并通过响应头和 cookie 下发令牌。
func EnsureSession(c *gin.Context, sm *token.SessionManager) (string, error) {
	if sid, ok := SessionID(c); ok {
		return sid, nil
	}
	sid, tokenString, err := sm.NewSession()
	if err != nil {
		return "", err
	}
	c.Set(sessionIDKey, sid)
	c.Header(SessionHeader, tokenString)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, tokenString, int(sm.TTL().Seconds()), "/", "", false, true)
	return sid, nil
}
