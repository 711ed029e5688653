package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger/internal/service"
)

// NewRouter configures the Gin router with middlewares and routes.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	authH *AuthHandler,
	convH *ConversationHandler,
	wsH *WSHandler,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	auth := r.Group("/auth")
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.Refresh)

	api := r.Group("")
	api.Use(JWTAuthMiddleware(jwtSvc))
	api.GET("/conversations", convH.List)
	api.POST("/conversations/open", convH.Open)
	api.POST("/conversations/:id/delete", convH.Delete)
	api.POST("/messages/:id/delete", convH.DeleteMessage)
	api.GET("/users/search", convH.SearchUsers)

	// The websocket endpoint authenticates on its own: browsers cannot set
	// headers on websocket dials, so the token rides in the query string.
	r.GET("/ws/chat/:conversationID/", wsH.Serve)

	return r
}

// zapLoggerMiddleware builds a simple request logging middleware around zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
