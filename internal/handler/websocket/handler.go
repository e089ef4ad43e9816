package websocket

import (
	"context"
	"errors"
	"net/http"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/hub"
	"collaborative-kanban/internal/middleware"
	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// UserResolver 根据 Token 中的 user_id 查找用户，由 service.AuthService 实现
type UserResolver interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// WebSocketHandler 负责握手认证、升级连接和客户端注册
type WebSocketHandler struct {
	upgrader  websocket.Upgrader
	hub       *hub.Hub
	users     UserResolver
	jwtSecret string
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空或 "*" 时允许任意来源。
func NewWebSocketHandler(h *hub.Hub, users UserResolver, jwtSecret, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if users == nil {
		panic("UserResolver cannot be nil for WebSocketHandler")
	}
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}

	return &WebSocketHandler{
		upgrader:  upgrader,
		hub:       h,
		users:     users,
		jwtSecret: jwtSecret,
	}
}

// HandleConnection 处理 GET /ws。Token 来自 ?token= 或 Authorization: Bearer。
// 缺少凭证、凭证无效和用户不存在都在升级前返回同样的 401，只在日志中区分。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	logCtx := logrus.WithField("remote_addr", c.ClientIP())

	// 1. 提取 Token
	token, err := middleware.TokenFromRequest(c)
	if err != nil {
		logCtx.WithError(err).Warn("WS Handler: Missing credential")
		rejectHandshake(c)
		return
	}

	// 2. 验证 Token
	userID, err := middleware.ParseUserID(token, h.jwtSecret)
	if err != nil {
		logCtx.WithError(err).Warn("WS Handler: Invalid credential")
		rejectHandshake(c)
		return
	}
	logCtx = logCtx.WithField("user_id", userID)

	// 3. 确认用户存在
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			logCtx.Warn("WS Handler: Unknown principal")
			rejectHandshake(c)
		} else {
			logCtx.WithError(err).Error("WS Handler: Failed to resolve user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred"})
		}
		return
	}

	// 4. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写入了 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	// 5. 创建 Client 并排队注册，随后启动读写 goroutine
	client := hub.NewClient(h.hub, conn, user.ID, user.Username)
	logCtx = logCtx.WithField("conn_id", client.ID())
	if !h.hub.Register(client) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	go client.Run()

	logCtx.Info("WS Handler: Client connected")
}

func rejectHandshake(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
}
