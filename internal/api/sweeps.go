package api

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"time"

	"whatsapp-assistant/internal/disposition"

	"github.com/gin-gonic/gin"
)

const sweepTimeout = 10 * time.Minute

// Sweeper runs one pass of a sweep.
type Sweeper interface {
	RunSweep(ctx context.Context, action disposition.SweepAction) (disposition.SweepReport, error)
}

type SweepHandler struct {
	Sweeper     Sweeper
	Token       string
	// BaseContext bounds background sweeps; it is cancelled on shutdown.
	BaseContext context.Context
}

func NewSweepHandler(ctx context.Context, sweeper Sweeper, token string) *SweepHandler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SweepHandler{Sweeper: sweeper, Token: token, BaseContext: ctx}
}

// TriggerSweep starts the sweep named by ?action= and returns without waiting
// for it to finish.
func (h *SweepHandler) TriggerSweep(c *gin.Context) {
	if h.Token != "" {
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	action, err := disposition.ParseSweepAction(c.Query("action"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(h.BaseContext, sweepTimeout)
		defer cancel()
		if _, err := h.Sweeper.RunSweep(ctx, action); err != nil {
			log.Printf("Sweep %s failed: %v", action, err)
		}
	}()

	c.JSON(http.StatusOK, gin.H{"status": "started", "action": action})
}
