package api

import (
	"net/http"
	"strconv"

	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/phone"
	"whatsapp-assistant/internal/store"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

type DashboardHandler struct {
	Store       *store.Store
	CountryCode string
}

func NewDashboardHandler(st *store.Store, countryCode string) *DashboardHandler {
	return &DashboardHandler{Store: st, CountryCode: countryCode}
}

// GetConversations lists the most recently active conversations with their
// unread counts.
func (h *DashboardHandler) GetConversations(c *gin.Context) {
	convs, err := h.Store.Conversations(c.Request.Context(), queryLimit(c), func(p string) []string {
		return phone.Variants(p, h.CountryCode)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if convs == nil {
		convs = []store.Conversation{}
	}
	c.JSON(http.StatusOK, convs)
}

// GetMessages returns the message history for one phone number, oldest first.
func (h *DashboardHandler) GetMessages(c *gin.Context) {
	number := c.Query("phone")
	if number == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}

	messages, err := h.Store.MessagesForPhones(c.Request.Context(), phone.Variants(number, h.CountryCode), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Return empty array instead of null
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}
