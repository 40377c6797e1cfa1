package webhook

import (
	"context"
	"errors"
	"log"
	"net/http"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/disposition"
	"whatsapp-assistant/internal/whatsapp"
	"whatsapp-assistant/pkg/models"

	"github.com/gin-gonic/gin"
)

// Processor handles parsed webhook events.
type Processor interface {
	HandleInbound(ctx context.Context, ev disposition.InboundEvent) (*disposition.InboundResult, error)
	HandleStatus(ctx context.Context, providerMessageID, providerStatus string) bool
}

type Handler struct {
	Config *config.Config
	Engine Processor
}

func NewHandler(cfg *config.Config, engine Processor) *Handler {
	return &Handler{
		Config: cfg,
		Engine: engine,
	}
}

// HandleMessage accepts inbound messages and status callbacks. It only stores
// and schedules, so it answers well inside the provider's timeout.
func (h *Handler) HandleMessage(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBind(&payload); err != nil {
		log.Printf("Error binding webhook form: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if h.Config.ValidateSignature && !h.validSignature(c) {
		log.Printf("Rejected webhook with invalid signature from %s", c.ClientIP())
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	if payload.IsStatusCallback() {
		updated := h.Engine.HandleStatus(c.Request.Context(), payload.MessageSid, payload.MessageStatus)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "updated": updated})
		return
	}

	log.Printf("Received message %s from %s", payload.MessageSid, payload.From)
	result, err := h.Engine.HandleInbound(c.Request.Context(), disposition.InboundEvent{
		ProviderMessageID: payload.MessageSid,
		From:              payload.From,
		To:                payload.To,
		ProfileName:       payload.ProfileName,
		Body:              payload.Body,
		ButtonPayload:     payload.ButtonPayload,
		ButtonText:        payload.ButtonText,
		NumMedia:          payload.NumMedia,
	})
	if errors.Is(err, disposition.ErrMissingSender) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing From"})
		return
	}
	if err != nil {
		log.Printf("Error handling inbound message %s: %v", payload.MessageSid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": result})
}

func (h *Handler) validSignature(c *gin.Context) bool {
	fullURL := h.Config.WebhookURL
	if fullURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		fullURL = scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
	}
	return whatsapp.ValidSignature(h.Config.TwilioAuthToken, fullURL, c.Request.PostForm, c.GetHeader(whatsapp.SignatureHeader))
}
