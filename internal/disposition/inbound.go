package disposition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"whatsapp-assistant/internal/eligibility"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/phone"
	"whatsapp-assistant/internal/store"
)

// InboundEvent is a provider-neutral inbound message.
type InboundEvent struct {
	ProviderMessageID string
	From              string
	To                string
	ProfileName       string
	Body              string
	ButtonPayload     string
	ButtonText        string
	NumMedia          int
}

type InboundResult struct {
	MessageID       string             `json:"message_id"`
	CustomerID      string             `json:"customer_id,omitempty"`
	CustomerCreated bool               `json:"customer_created"`
	Duplicate       bool               `json:"duplicate"`
	Type            models.MessageType `json:"type"`
	Disposition     models.Disposition `json:"disposition"`
	Scheduled       bool               `json:"scheduled"`
	ReplyAt         *time.Time         `json:"reply_at,omitempty"`
}

// Classify assigns the message type: button beats media beats text.
func Classify(ev InboundEvent) models.MessageType {
	switch {
	case strings.TrimSpace(ev.ButtonPayload) != "" || strings.TrimSpace(ev.ButtonText) != "":
		return models.TypeButtonClick
	case ev.NumMedia > 0:
		return models.TypeMedia
	default:
		return models.TypeText
	}
}

// HandleInbound stores an inbound event and either resolves it immediately or
// schedules a reply job. Only a missing sender or a failed message insert is
// reported as an error; later steps are best-effort.
func (e *Engine) HandleInbound(ctx context.Context, ev InboundEvent) (*InboundResult, error) {
	from := phone.International(ev.From, e.opts.CountryCode)
	if from == "" {
		return nil, ErrMissingSender
	}
	msgType := Classify(ev)
	now := e.now()

	if ev.ProviderMessageID != "" {
		existing, err := e.store.FindByProviderID(ctx, ev.ProviderMessageID)
		if err == nil {
			return &InboundResult{
				MessageID:   existing.ID,
				CustomerID:  deref(existing.CustomerID),
				Duplicate:   true,
				Type:        existing.Type,
				Disposition: existing.Disposition,
			}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Error checking for duplicate %s: %v", ev.ProviderMessageID, err)
		}
	}

	result := &InboundResult{Type: msgType}

	customer, created := e.resolveCustomer(ctx, from)
	if customer != nil {
		result.CustomerID = customer.ID
		result.CustomerCreated = created
	}

	msg := &models.Message{
		CreatedAt:     now,
		PhoneNumber:   from,
		DisplayName:   optional(ev.ProfileName),
		Body:          ev.Body,
		Type:          msgType,
		Direction:     models.DirectionInbound,
		ButtonPayload: optional(ev.ButtonPayload),
		ButtonText:    optional(ev.ButtonText),
		Status:        optional(models.StatusDelivered),
	}
	if ev.ProviderMessageID != "" {
		msg.ProviderMessageID = optional(ev.ProviderMessageID)
	}
	if customer != nil {
		msg.CustomerID = optional(customer.ID)
	}
	if err := e.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store inbound message: %w", err)
	}
	result.MessageID = msg.ID
	e.notifier.NotifyMessage(*msg)

	if msgType == models.TypeButtonClick && customer != nil {
		e.recordButton(ctx, customer.ID, ev.ButtonPayload, ev.ButtonText, now)
	}

	decision, err := e.guard.Check(ctx, from)
	if err != nil {
		// The reply job re-checks eligibility before doing anything.
		log.Printf("Error in eligibility pre-check for %s: %v", msg.ID, err)
	} else if !decision.Allowed {
		result.Disposition = e.skip(ctx, msg, decision)
		return result, nil
	}

	replyAt := now.Add(e.opts.ReplyDelay)
	job := &models.ReplyJob{MessageID: msg.ID, PhoneNumber: from, NotBefore: replyAt}
	if err := e.store.EnqueueReplyJob(ctx, job); err != nil {
		log.Printf("Could not schedule reply for %s, leaving it to the sweeper: %v", msg.ID, err)
		return result, nil
	}
	result.Scheduled = true
	result.ReplyAt = &replyAt
	return result, nil
}

// resolveCustomer finds the sender by any stored representation of their
// number, creating a new lead when none matches.
func (e *Engine) resolveCustomer(ctx context.Context, from string) (*models.Customer, bool) {
	customer, err := e.store.FindCustomerByPhones(ctx, phone.Variants(from, e.opts.CountryCode))
	if err != nil {
		log.Printf("Error looking up customer for %s: %v", from, err)
		return nil, false
	}
	if customer != nil {
		return customer, false
	}

	customer = &models.Customer{
		AlternatePhone: from,
		Status:         optional(models.CustomerStatusNew),
		Source:         optional(models.SourceWhatsAppInbound),
	}
	if err := e.store.CreateCustomer(ctx, customer); err != nil {
		log.Printf("Error auto-creating customer for %s: %v", from, err)
		return nil, false
	}
	log.Printf("Created customer %s for new sender %s", customer.ID, from)
	return customer, true
}

// ButtonResponse maps a button to a delivery-confirmation answer. An exact
// payload match wins; otherwise "yes" then "no" are matched anywhere in the
// payload or label.
func ButtonResponse(payload, label string) (models.CustomerResponse, bool) {
	p := strings.ToLower(strings.TrimSpace(payload))
	switch models.CustomerResponse(p) {
	case models.ResponseYesReceived, models.ResponseNoNotReceived:
		return models.CustomerResponse(p), true
	}

	text := p + " " + strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(text, "yes"):
		return models.ResponseYesReceived, true
	case strings.Contains(text, "no"):
		return models.ResponseNoNotReceived, true
	}
	return "", false
}

func (e *Engine) recordButton(ctx context.Context, customerID, payload, label string, at time.Time) {
	if label == "" {
		label = payload
	}
	resp, ok := ButtonResponse(payload, label)
	var err error
	if ok {
		err = e.store.RecordButtonResponse(ctx, customerID, resp, label, at)
	} else {
		err = e.store.RecordButtonClick(ctx, customerID, label, at)
	}
	if err != nil {
		log.Printf("Error recording button click for customer %s: %v", customerID, err)
	}
}

// skip resolves a message the guard refused. Rate-limited customers are
// flagged for an agent since they are clearly still unserved.
func (e *Engine) skip(ctx context.Context, msg *models.Message, decision eligibility.Decision) models.Disposition {
	d, review := models.DispositionManualOnly, false
	if decision.Reason == eligibility.ReasonRateLimited {
		d, review = models.DispositionFlaggedForAgent, true
	}
	e.setDisposition(ctx, msg, d, review)
	return d
}

func (e *Engine) setDisposition(ctx context.Context, msg *models.Message, d models.Disposition, review bool) bool {
	ok, err := e.store.SetDisposition(ctx, msg.ID, d, review)
	if err != nil {
		log.Printf("Error setting %s on %s: %v", d, msg.ID, err)
		return false
	}
	if !ok {
		return false
	}
	msg.Disposition = d
	msg.NeedsReview = msg.NeedsReview || review
	e.notifier.NotifyDisposition(msg.ID, d, msg.NeedsReview)
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
