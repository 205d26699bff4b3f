package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"docchat-go/internal/apperr"
	"docchat-go/internal/middleware"
	"docchat-go/internal/service"
	"docchat-go/pkg/log"
	"docchat-go/pkg/token"
)

// 没有可用索引时返回给客户端的文案
const (
	noDocumentMessage = "No document has been processed yet"
	noResumeMessage   = "No resume has been processed yet"
	chatFallback      = "Error processing chat. Please try again."
)

// ChatHandler 负责处理问答请求，包括 WebSocket 流式问答。
type ChatHandler struct {
	chatService service.ChatService
	sessions    *token.SessionManager
	upgrader    websocket.Upgrader
}

// NewChatHandler 创建一个新的 ChatHandler。allowedOrigins 用于 WebSocket 的来源校验。
func NewChatHandler(chatService service.ChatService, sessions *token.SessionManager, allowedOrigins []string) *ChatHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &ChatHandler{
		chatService: chatService,
		sessions:    sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat 处理 POST /chat。
func (h *ChatHandler) Chat(c *gin.Context) {
	h.answer(c, noDocumentMessage)
}

// ResumeChat 处理 POST /resume-chat，与 /chat 相同，只是无索引时的文案不同。
func (h *ChatHandler) ResumeChat(c *gin.Context) {
	h.answer(c, noResumeMessage)
}

func (h *ChatHandler) answer(c *gin.Context, noIndexMessage string) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No message provided"})
		return
	}
	sessionID, ok := middleware.SessionID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": noIndexMessage})
		return
	}

	answer, err := h.chatService.Answer(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, apperr.ErrNoIndexAvailable) {
			c.JSON(http.StatusBadRequest, gin.H{"error": noIndexMessage})
			return
		}
		respondError(c, err, chatFallback)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": answer})
}

type controlMessage struct {
	Type string `json:"type"`
}

func isStopCommand(message []byte) bool {
	if len(message) == 0 || message[0] != '{' {
		return false
	}
	var ctrl controlMessage
	return json.Unmarshal(message, &ctrl) == nil && ctrl.Type == "stop"
}

// Stream 处理 GET /chat/stream 的 WebSocket 连接。每条文本消息是一个问题，
// 回答以 {"chunk":...} 帧流式返回；发送 {"type":"stop"} 可中止当前回答的下发。
// 浏览器无法为 WebSocket 设置请求头，因此也接受 ?token= 查询参数。
func (h *ChatHandler) Stream(c *gin.Context) {
	sessionID, ok := middleware.SessionID(c)
	if !ok {
		if tok := c.Query("token"); tok != "" {
			if sid, err := h.sessions.VerifyToken(tok); err == nil {
				sessionID, ok = sid, true
			}
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立, session: %s", sessionID)

	ctx := c.Request.Context()
	var stop atomic.Bool
	questions := make(chan string)

	// 读协程：停止指令直接置位，问题交给写循环处理
	go func() {
		defer close(questions)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Debugf("WebSocket 读取结束: %v", err)
				return
			}
			if isStopCommand(message) {
				log.Info("收到停止指令，正在中断流式响应...")
				stop.Store(true)
				continue
			}
			select {
			case questions <- string(message):
			case <-ctx.Done():
				return
			}
		}
	}()

	for question := range questions {
		if !ok {
			writeJSON(conn, gin.H{"error": noDocumentMessage})
			continue
		}
		stop.Store(false)
		err := h.chatService.StreamAnswer(ctx, sessionID, question, conn, stop.Load)
		if err == nil {
			continue
		}
		if errors.Is(err, apperr.ErrNoIndexAvailable) {
			writeJSON(conn, gin.H{"error": noDocumentMessage})
			continue
		}
		if apperr.IsUserError(err) {
			writeJSON(conn, gin.H{"error": apperr.PublicMessage(err, chatFallback)})
			continue
		}
		log.Errorw("处理流式响应失败", "session", sessionID, "error", err)
		writeJSON(conn, gin.H{"error": chatFallback})
		return
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) {
	b, _ := json.Marshal(v)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
