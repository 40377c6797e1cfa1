package disposition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/phone"
	"whatsapp-assistant/internal/whatsapp"
)

// OutboundRequest is an operator-initiated send. TemplateID selects a
// templated send; otherwise Body is sent as text.
type OutboundRequest struct {
	To         string            `json:"to"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id"`
	Variables  map[string]string `json:"variables"`
}

var (
	ErrMissingDestination = errors.New("missing destination number")
	ErrEmptyMessage       = errors.New("message body or template id is required")
)

// SendManual sends an operator message and records it as a human agent reply,
// which pauses automation for that number. No row is written when the send
// fails.
func (e *Engine) SendManual(ctx context.Context, req OutboundRequest) (*whatsapp.SendResult, *models.Message, error) {
	to := phone.International(req.To, e.opts.CountryCode)
	if to == "" {
		return nil, nil, ErrMissingDestination
	}
	if strings.TrimSpace(req.Body) == "" && req.TemplateID == "" {
		return nil, nil, ErrEmptyMessage
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.opts.SendTimeout)
	defer cancel()

	var (
		res     *whatsapp.SendResult
		err     error
		msgType = models.TypeText
		body    = req.Body
	)
	if req.TemplateID != "" {
		msgType = models.TypeTemplate
		if body == "" {
			body = fmt.Sprintf("[template %s]", req.TemplateID)
		}
		res, err = e.sender.SendTemplate(sendCtx, to, req.TemplateID, req.Variables)
	} else {
		res, err = e.sender.SendMessage(sendCtx, to, req.Body)
	}
	if err != nil {
		return nil, nil, err
	}

	status := res.Status
	if status == "" {
		status = models.StatusQueued
	}
	out := &models.Message{
		CreatedAt:         e.now(),
		PhoneNumber:       to,
		Body:              body,
		ProviderMessageID: optional(res.ProviderMessageID),
		Type:              msgType,
		Direction:         models.DirectionOutbound,
		Status:            &status,
	}
	if c, err := e.store.FindCustomerByPhones(ctx, phone.Variants(to, e.opts.CountryCode)); err == nil && c != nil {
		out.CustomerID = optional(c.ID)
	}
	if err := e.store.InsertMessage(ctx, out); err != nil {
		log.Printf("Sent %s to %s but could not record it: %v", res.ProviderMessageID, to, err)
		return res, nil, nil
	}
	e.notifier.NotifyMessage(*out)
	return res, out, nil
}
