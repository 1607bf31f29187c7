package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"civico/backend/internal/models"
)

// StartConversation opens a conversation and returns the assistant greeting.
// No draft exists yet: entering and leaving the chat is free of side effects.
func (h *Handler) StartConversation(c *gin.Context) {
	ident := caller(c)

	conv, greeting, err := h.Orchestrator.StartConversation(c.Request.Context(), ident.OwnerID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"conversation_id": conv.ID,
		"reply":           greeting.Body,
		"draft":           nil,
	})
}

type postMessageRequest struct {
	ConversationID string          `json:"conversation_id" binding:"required"`
	Message        string          `json:"message" binding:"required"`
	Fields         models.FieldMap `json:"fields"`
}

// PostMessage runs one chat turn through the orchestrator.
func (h *Handler) PostMessage(c *gin.Context) {
	ident := caller(c)

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id and message are required"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id and message are required"})
		return
	}
	if err := models.ValidateKeys(req.Fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Orchestrator.HandleMessage(c.Request.Context(), ident.OwnerID, req.ConversationID, req.Message, req.Fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
