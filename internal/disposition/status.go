package disposition

import (
	"context"
	"log"
	"strings"

	"whatsapp-assistant/internal/models"
)

// HandleStatus applies a delivery-status callback to the outbound message with
// the given provider id. It never touches disposition and never fails: an
// unknown id or a store error is logged and the callback is still accepted.
func (e *Engine) HandleStatus(ctx context.Context, providerMessageID, providerStatus string) bool {
	providerMessageID = strings.TrimSpace(providerMessageID)
	status := models.NormalizeStatus(providerStatus)
	if providerMessageID == "" || status == "" {
		log.Printf("Ignoring status callback with id %q status %q", providerMessageID, providerStatus)
		return false
	}

	updated, err := e.store.UpdateStatusByProviderID(ctx, providerMessageID, status)
	if err != nil {
		log.Printf("Error updating status for %s: %v", providerMessageID, err)
		return false
	}
	if !updated {
		log.Printf("Status %s for unknown message %s", status, providerMessageID)
		return false
	}
	e.notifier.NotifyStatus(providerMessageID, status)
	return true
}
