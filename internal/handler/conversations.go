package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pyx-backend/internal/model"
)

func (h *ChatHandler) ListConversations(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	sessions := a.Conversations()
	c.JSON(http.StatusOK, model.ConversationListResponse{Conversations: sessions, Total: len(sessions)})
}

func (h *ChatHandler) SearchConversations(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	sessions := a.SearchConversations(c.Query("q"))
	c.JSON(http.StatusOK, model.ConversationListResponse{Conversations: sessions, Total: len(sessions)})
}

func (h *ChatHandler) LoadConversation(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	state, err := a.LoadConversation(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
