package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"leadflow/internal/auth"
	"leadflow/internal/models"
	"leadflow/internal/repository"
	"leadflow/internal/services"
	"leadflow/pkg/jwt"
	"leadflow/pkg/queue"
	"leadflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 300 * time.Second
	wsPingInterval = 60 * time.Second
)

// WebSocketHandler 按租户推送线索事件
type WebSocketHandler struct {
	upgrader   websocket.Upgrader
	queue      *queue.RedisQueue
	jwtManager *jwt.JWTManager
	log        *logrus.Logger
}

// NewWebSocketHandler 创建WebSocket处理器；allowedOrigins 与 CORS 配置一致
func NewWebSocketHandler(q *queue.RedisQueue, jwtManager *jwt.JWTManager, allowedOrigins []string, log *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || matchOrigin(origin, allowed) {
						return true
					}
				}
				log.Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
				return false
			},
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 32,
		},
		queue:      q,
		jwtManager: jwtManager,
		log:        log,
	}
}

// LeadEvents 订阅当前组织的 lead.created / lead.approved / lead.rejected 事件
func (h *WebSocketHandler) LeadEvents(c *gin.Context) {
	// 浏览器无法为 WebSocket 设置请求头，令牌放在查询参数里
	claims, err := h.jwtManager.VerifyToken(c.Query("token"))
	if err != nil {
		response.Unauthorized(c, "authentication required")
		return
	}
	scope, err := repository.ScopeFromIdentity(auth.Identity{UserID: claims.UserID, OrgID: claims.OrgID, OrgRole: claims.OrgRole})
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := scope.Require(models.PermLeadRead); err != nil {
		response.FromError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.log.WithFields(logrus.Fields{
		"tenant_id": scope.TenantID,
		"user_id":   scope.UserID,
	}).Info("Lead event stream connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	h.stream(ctx, cancel, conn, services.EventChannel(scope.TenantID))
}

func (h *WebSocketHandler) stream(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, channel string) {
	pubsub := h.queue.Subscribe(ctx, channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.WithError(err).Error("Failed to subscribe to Redis channel")
		return
	}

	go h.readPump(conn, cancel)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !json.Valid([]byte(msg.Payload)) {
				h.log.WithField("channel", channel).Warn("Dropping malformed event")
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.log.WithError(err).Debug("Failed to send event to client")
				return
			}
		}
	}
}

// readPump 只处理 pong 与关闭
func (h *WebSocketHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Warn("WebSocket unexpected close")
			}
			return
		}
	}
}

// matchOrigin 支持精确匹配与 *.example.com 通配
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}
	if !strings.HasPrefix(allowed, "*.") {
		return false
	}
	domain := allowed[2:]

	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
