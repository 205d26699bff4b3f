package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSession_ValidHeaderAndCookie(t *testing.T) {
	sm := token.NewSessionManager("secret", time.Hour)
	tok, err := sm.GenerateToken("abc")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Session(sm))
	r.GET("/", func(c *gin.Context) {
		sid, _ := SessionID(c)
		c.String(http.StatusOK, sid)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())
}

func TestSession_InvalidTokenDoesNotAbort(t *testing.T) {
	sm := token.NewSessionManager("secret", time.Hour)
	r := gin.New()
	r.Use(Session(sm))
	r.GET("/", func(c *gin.Context) {
		_, ok := SessionID(c)
		c.JSON(http.StatusOK, gin.H{"has": ok})
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"has":false}`, w.Body.String())
}

func TestEnsureSession_MintsToken(t *testing.T) {
	sm := token.NewSessionManager("secret", time.Hour)
	r := gin.New()
	r.Use(Session(sm))
	r.POST("/", func(c *gin.Context) {
		sid, err := EnsureSession(c, sm)
		require.NoError(t, err)
		c.String(http.StatusOK, sid)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	sid := w.Body.String()
	require.NotEmpty(t, sid)

	tok := w.Header().Get(SessionHeader)
	got, err := sm.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, sid, got)
	assert.Contains(t, w.Header().Get("Set-Cookie"), SessionCookie+"=")

	// 已有会话时沿用
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(SessionHeader, tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, sid, w.Body.String())
	assert.Empty(t, w.Header().Get(SessionHeader))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.POST("/chat", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), SessionHeader)

	req = httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger_RequestIDAndBodyPassthrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/echo", func(c *gin.Context) {
		var body map[string]string
		require.NoError(t, c.ShouldBindJSON(&body))
		c.JSON(http.StatusOK, body)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"hi"}`, w.Body.String())
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"message":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "fixed-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get(RequestIDHeader))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", maxLoggedBody+10)
	assert.True(t, strings.HasSuffix(truncate(long), "...(truncated)"))
	assert.Equal(t, "short", truncate("short"))
}
