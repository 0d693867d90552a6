package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/codexalpha/blueprint_go_server/internal/pkg/jwt"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/ws"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: 生产环境需要验证 Origin
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type WebSocketHandler struct {
	hub       *ws.Hub
	userRepo  *repository.UserRepository
	jwtSecret string
}

func NewWebSocketHandler(hub *ws.Hub, userRepo *repository.UserRepository, jwtSecret string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
	}
}

// Handle WebSocket 连接处理
// GET /api/v1/ws?token=xxx
func (h *WebSocketHandler) Handle(c *gin.Context) {
	// 验证 JWT Token
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := jwt.ParseToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	isAdmin := false
	if user, err := h.userRepo.GetByID(claims.UserID); err == nil {
		isAdmin = user.IsAdmin
	}

	// 升级连接
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := &ws.Client{
		UserID:  claims.UserID,
		IsAdmin: isAdmin,
		Conn:    conn,
	}

	h.hub.Register(client)

	// 保持连接，读取消息（主要用于检测断开）
	go func() {
		defer h.hub.Unregister(client)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}
