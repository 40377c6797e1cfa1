package disposition

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"whatsapp-assistant/internal/assistant"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/phone"
)

// Outcome is how one attempt to answer an inbound message ended.
type Outcome string

const (
	OutcomeSent            Outcome = "sent"
	OutcomeSentForReview   Outcome = "sent_for_review"
	OutcomeEscalated       Outcome = "escalated"
	OutcomeSkipped         Outcome = "skipped"
	OutcomeFlagged         Outcome = "flagged"
	OutcomeFailed          Outcome = "failed"
	OutcomeAlreadyResolved Outcome = "already_resolved"
)

const (
	unansweredLookback = 24 * time.Hour
	unansweredLimit    = 5
)

const (
	cannedPositiveAck = "Thank you for confirming your delivery! We're glad it reached you."
	cannedNegativeAck = "Thank you for letting us know. Our team is looking into your delivery and will get back to you shortly."
	cannedGenericAck  = "Thanks for your response! Our team will be in touch if anything else is needed."
)

// respond runs the guard re-check, generation and send for one inbound
// message. A failed send leaves the disposition unset for a later attempt.
func (e *Engine) respond(ctx context.Context, msg *models.Message) Outcome {
	if msg.Disposition != models.DispositionUnset {
		return OutcomeAlreadyResolved
	}

	decision, err := e.guard.Check(ctx, msg.PhoneNumber)
	if err != nil {
		log.Printf("Error checking eligibility for %s: %v", msg.ID, err)
		return OutcomeFailed
	}
	if !decision.Allowed {
		if e.skip(ctx, msg, decision) == models.DispositionFlaggedForAgent {
			return OutcomeFlagged
		}
		return OutcomeSkipped
	}

	var reply assistant.Reply
	if msg.Type == models.TypeButtonClick {
		reply = e.acknowledge(ctx, msg)
	} else {
		reply = e.generate(ctx, e.replyRequest(ctx, msg))
	}

	if !reply.HasText() {
		log.Printf("Escalating %s to an agent: %s", msg.ID, reply.Reason)
		e.setDisposition(ctx, msg, models.DispositionFlaggedForAgent, true)
		return OutcomeEscalated
	}

	if _, err := e.sendAndRecord(ctx, msg.PhoneNumber, reply.Text, msg.CustomerID); err != nil {
		log.Printf("Reply to %s not sent: %v", msg.ID, err)
		return OutcomeFailed
	}

	e.setDisposition(ctx, msg, models.DispositionAutoReplied, reply.ShouldEscalate)
	if reply.ShouldEscalate {
		log.Printf("Replied to %s and flagged it for review: %s", msg.ID, reply.Reason)
		return OutcomeSentForReview
	}
	return OutcomeSent
}

func (e *Engine) generate(ctx context.Context, req assistant.Request) assistant.Reply {
	ctx, cancel := context.WithTimeout(ctx, e.opts.GenerateTimeout)
	defer cancel()
	return e.generator.Generate(ctx, req)
}

// replyRequest assembles the bounded context for a conversational reply.
// Human agent messages never enter the history.
func (e *Engine) replyRequest(ctx context.Context, msg *models.Message) assistant.Request {
	phones := phone.Variants(msg.PhoneNumber, e.opts.CountryCode)
	req := assistant.Request{
		Task:         assistant.TaskReply,
		CustomerName: e.customerName(ctx, msg),
	}

	history, err := e.store.ContextHistory(ctx, phones, msg.CreatedAt, e.opts.HistoryTurns)
	if err != nil {
		log.Printf("Error loading history for %s: %v", msg.ID, err)
	}
	for _, m := range history {
		role := assistant.RoleCustomer
		if m.Direction == models.DirectionOutbound {
			role = assistant.RoleAssistant
		}
		if strings.TrimSpace(m.Body) == "" {
			continue
		}
		req.History = append(req.History, assistant.Turn{Role: role, Text: m.Body})
	}

	since := e.now().Add(-unansweredLookback)
	if last, err := e.store.LatestOutbound(ctx, phones); err != nil {
		log.Printf("Error loading latest outbound for %s: %v", msg.ID, err)
	} else if last != nil && last.CreatedAt.After(since) {
		since = last.CreatedAt
	}
	unanswered, err := e.store.UnansweredFlagged(ctx, phones, since, msg.CreatedAt, unansweredLimit)
	if err != nil {
		log.Printf("Error loading unanswered questions for %s: %v", msg.ID, err)
	}
	for _, m := range unanswered {
		if strings.TrimSpace(m.Body) != "" {
			req.UnansweredPrior = append(req.UnansweredPrior, m.Body)
		}
	}

	switch {
	case strings.TrimSpace(msg.Body) != "":
		body := msg.Body
		req.CurrentMessage = &body
	case msg.Type == models.TypeMedia:
		body := "(the customer sent an attachment without text)"
		req.CurrentMessage = &body
	}
	return req
}

// acknowledge produces the reply to a button click. It never escalates for
// lack of text: a canned acknowledgement is used instead.
func (e *Engine) acknowledge(ctx context.Context, msg *models.Message) assistant.Reply {
	payload, label := deref(msg.ButtonPayload), deref(msg.ButtonText)
	if label == "" {
		label = payload
	}

	resp, ok := ButtonResponse(payload, label)
	scenario := fmt.Sprintf("The customer tapped the %q button.", label)
	fallback := cannedGenericAck
	if ok && resp == models.ResponseYesReceived {
		scenario = "The customer tapped a button confirming they received their delivery."
		fallback = cannedPositiveAck
	} else if ok {
		scenario = "The customer tapped a button saying their delivery has not arrived."
		fallback = cannedNegativeAck
	}

	reply := e.generate(ctx, assistant.Request{
		Task:         assistant.TaskAcknowledge,
		Scenario:     scenario,
		CustomerName: e.customerName(ctx, msg),
	})
	if !reply.HasText() {
		return assistant.Reply{Text: fallback}
	}
	return reply
}

func (e *Engine) customerName(ctx context.Context, msg *models.Message) *string {
	if msg.CustomerID != nil {
		c, err := e.store.GetCustomer(ctx, *msg.CustomerID)
		if err == nil && strings.TrimSpace(c.Name) != "" {
			name := c.Name
			return &name
		}
	}
	if msg.DisplayName != nil && strings.TrimSpace(*msg.DisplayName) != "" {
		name := *msg.DisplayName
		return &name
	}
	return nil
}

// sendAndRecord sends an assistant message and appends it to the store. No
// row is written when the send fails. A failed write after a successful send
// is logged only, since the customer already has the reply.
func (e *Engine) sendAndRecord(ctx context.Context, to, body string, customerID *string) (*models.Message, error) {
	sendCtx, cancel := context.WithTimeout(ctx, e.opts.SendTimeout)
	defer cancel()

	res, err := e.sender.SendMessage(sendCtx, to, body)
	if err != nil {
		return nil, err
	}

	status := res.Status
	if status == "" {
		status = models.StatusQueued
	}
	out := &models.Message{
		CreatedAt:         e.now(),
		CustomerID:        customerID,
		PhoneNumber:       phone.International(to, e.opts.CountryCode),
		Body:              body,
		ProviderMessageID: optional(res.ProviderMessageID),
		Type:              models.TypeText,
		Direction:         models.DirectionOutbound,
		Status:            &status,
		IsAIResponse:      true,
		Disposition:       models.DispositionAutoReplied,
	}
	if err := e.store.InsertMessage(ctx, out); err != nil {
		log.Printf("Sent %s to %s but could not record it: %v", res.ProviderMessageID, to, err)
		return out, nil
	}
	e.notifier.NotifyMessage(*out)
	return out, nil
}
