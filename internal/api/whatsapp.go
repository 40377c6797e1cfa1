package api

import (
	"context"
	"errors"
	"net/http"

	"whatsapp-assistant/internal/disposition"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

// ManualSender sends and records operator messages.
type ManualSender interface {
	SendManual(ctx context.Context, req disposition.OutboundRequest) (*whatsapp.SendResult, *models.Message, error)
}

type WhatsAppHandler struct {
	Sender ManualSender
}

func NewWhatsAppHandler(sender ManualSender) *WhatsAppHandler {
	return &WhatsAppHandler{Sender: sender}
}

// SendMessage sends a text or templated message on behalf of an agent.
func (h *WhatsAppHandler) SendMessage(c *gin.Context) {
	var req disposition.OutboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, msg, err := h.Sender.SendManual(c.Request.Context(), req)
	if errors.Is(err, disposition.ErrMissingDestination) || errors.Is(err, disposition.ErrEmptyMessage) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "response": res, "message": msg})
}
