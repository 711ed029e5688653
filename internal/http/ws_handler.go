package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messenger/internal/service"
	"messenger/internal/ws"
)

// WSHandler upgrades chat connections and hands them to a session.
type WSHandler struct {
	logger   *zap.Logger
	jwtSvc   *service.JWTService
	store    ws.Store
	registry *ws.Registry
	presence ws.Presence
	upgrader websocket.Upgrader
}

func NewWSHandler(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	store ws.Store,
	registry *ws.Registry,
	presence ws.Presence,
) *WSHandler {
	return &WSHandler{
		logger:   logger,
		jwtSvc:   jwtSvc,
		store:    store,
		registry: registry,
		presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin policy is enforced by the deployment's proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws/chat/:conversationID/. The participant check happens
// inside Session.Run after the upgrade, so rejected users get a proper close
// frame instead of a failed handshake.
func (h *WSHandler) Serve(c *gin.Context) {
	claims, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conversationID := strings.TrimSpace(c.Param("conversationID"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing conversation id"})
		return
	}

	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := ws.NewConn(sock)
	conn.Start()

	session := ws.NewSession(
		h.logger,
		h.store,
		h.registry,
		h.presence,
		conn,
		claims.UserID,
		claims.Username,
		conversationID,
	)
	if err := session.Run(c.Request.Context()); err != nil && !errors.Is(err, ws.ErrUnauthorized) {
		h.logger.Warn("session ended with error",
			zap.String("conversation_id", conversationID),
			zap.String("user_id", claims.UserID),
			zap.Error(err),
		)
	}
}

// authenticate resolves the connection's user from the Authorization header
// or, for browser clients, a token query parameter.
func (h *WSHandler) authenticate(c *gin.Context) (service.Claims, error) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = strings.TrimSpace(c.Query("token"))
	}
	return h.jwtSvc.ParseAccessToken(token)
}
