package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger/internal/repository"
	"messenger/internal/service"
)

// ConversationHandler exposes the REST surface around conversations and
// messages. The live protocol lives on the websocket; these endpoints cover
// listing, opening, and deletes initiated outside a socket.
type ConversationHandler struct {
	logger *zap.Logger
	chat   *service.ChatService
	users  *service.UserService
}

func NewConversationHandler(logger *zap.Logger, chat *service.ChatService, users *service.UserService) *ConversationHandler {
	return &ConversationHandler{
		logger: logger,
		chat:   chat,
		users:  users,
	}
}

// List handles GET /conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	summaries, err := h.chat.ListConversations(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list conversations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// Open handles POST /conversations/open: find-or-create the conversation with
// another user and mark their messages read.
func (h *ConversationHandler) Open(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	conv, err := h.chat.OpenConversation(c.Request.Context(), claims.UserID, req.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if errors.Is(err, service.ErrChatInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err != nil {
		h.logger.Error("open conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// Delete handles POST /conversations/:id/delete (soft delete).
func (h *ConversationHandler) Delete(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.chat.DeleteConversation(c.Request.Context(), c.Param("id"), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		h.logger.Error("delete conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteMessage handles POST /messages/:id/delete. Ownership mismatches look
// identical to missing messages on purpose.
func (h *ConversationHandler) DeleteMessage(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	msg, err := h.chat.SoftDeleteMessage(c.Request.Context(), c.Param("id"), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		h.logger.Error("delete message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// SearchUsers handles GET /users/search?q=.
func (h *ConversationHandler) SearchUsers(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	users, err := h.users.Search(c.Request.Context(), c.Query("q"), claims.UserID)
	if err != nil {
		h.logger.Error("user search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not search users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
